package session

import (
    crand "crypto/rand"
    "encoding/binary"
    "math/rand/v2"
    "sync"
    "time"
)

// lockedRand is a seeded PRNG shared by every game of one manager.
type lockedRand struct {
    mu sync.Mutex
    r  *rand.Rand
}

func newLockedRand(seed uint64) *lockedRand {
    return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.r.Shuffle(n, swap)
}

func (l *lockedRand) IntN(n int) int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return l.r.IntN(n)
}

func (l *lockedRand) Perm(n int) []int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return l.r.Perm(n)
}

// cryptoSeed reads a seed from crypto/rand, falling back to the clock.
func cryptoSeed() uint64 {
    var b [8]byte
    if _, err := crand.Read(b[:]); err != nil {
        return uint64(time.Now().UnixNano())
    }
    return binary.LittleEndian.Uint64(b[:])
}
