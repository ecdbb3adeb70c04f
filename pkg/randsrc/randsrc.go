// Package randsrc owns the three independent PRNG streams the engine needs:
// row sampling, NOMINAL one-hot substitution, and VP-tree vantage selection.
// Each stream is an ordinary *rand.Rand; callers own the lifetime of the
// stream the same way they own whichever struct embeds it.
package randsrc

import (
	crand "crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Entropy returns a PRNG seeded from a process entropy source. Use for
// streams where reproducibility across runs is not required (row sampling,
// NOMINAL substitution).
func Entropy() *mrand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return mrand.New(mrand.NewSource(seed))
}

// Seeded returns a PRNG seeded deterministically. Use where builds must be
// reproducible across runs on the same input (the VP-tree vantage selection
// stream, seeded with the fixed constant 23).
func Seeded(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}
