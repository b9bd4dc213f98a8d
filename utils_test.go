// Test utils

package multipartsio

import "math/rand"

// chunkRandomly splits data into a random sequence of non-empty slices that
// concatenate back to data, used to drive the same input through Feed at
// randomly placed chunk boundaries. Grounded on the teacher's utils_test.go
// (randWS/randLWS/randCase), which drives its parser tests with randomized
// inputs seeded from TestMain's -seed flag rather than a fixed table; this
// is the same idea applied to chunk boundaries instead of whitespace/case.
func chunkRandomly(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var chunks [][]byte
	start := 0
	for start < len(data) {
		remaining := len(data) - start
		n := rand.Intn(remaining) + 1
		chunks = append(chunks, data[start:start+n])
		start += n
	}
	return chunks
}

// byteChunks splits data into chunks of exactly n bytes (the final chunk may
// be shorter), for deterministic boundary-placement tests.
func byteChunks(data []byte, n int) [][]byte {
	if n <= 0 {
		panic("chunk size must be positive")
	}
	var chunks [][]byte
	for start := 0; start < len(data); start += n {
		end := start + n
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}
