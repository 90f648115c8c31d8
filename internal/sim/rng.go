package sim

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
)

// roll returns a uniform sample in [0,1) derived deterministically from
// (worldSeed, tick, key). The same submission replayed against the same
// world state draws the same number, which keeps probabilistic outcomes
// reproducible in tests and in offline replays.
func roll(seed int64, tick uint64, key string) float64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], tick)
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(key))
	return rand.New(rand.NewSource(int64(h.Sum64()))).Float64()
}

func clampProb(p, lo, hi float64) float64 {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}
