package multipartsio

// TestMain seeds math/rand for chunkRandomly (see utils_test.go) so the
// randomized chunk-boundary property tests are reproducible: a failure
// printed with a given seed can be rerun with "-seed <n>".

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"
)

var seed int64 // rand() seed

func TestMain(m *testing.M) {
	seed = time.Now().UnixNano()
	flag.Int64Var(&seed, "seed", seed, "random seed")
	flag.Parse()
	rand.Seed(seed)
	fmt.Printf("using random seed %d (0x%x) ( \"-seed\" to change)\n",
		seed, seed)
	res := m.Run()
	os.Exit(res)
}
