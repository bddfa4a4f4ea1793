package checkout

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// maxCodeAttempts bounds the random generation loop before the factory falls
// back to a clock-derived code to guarantee termination.
const maxCodeAttempts = 100

// CodeFactory produces human-readable order codes of the form "APP-###-###"
// that are unique within the factory's lifetime. The used-code set is owned
// by the instance, not package state, so each session (and each test) gets
// its own namespace.
//
// Codes are unique within a factory, never across processes; they are a
// display and correlation handle only. OrderIntent.IntentID carries the
// collision-resistant identifier.
type CodeFactory struct {
	mu   sync.Mutex
	used map[string]struct{}

	randInt func(n int) int // returns [0, n)
	now     func() time.Time
}

// NewCodeFactory returns a factory with an empty used-code set.
func NewCodeFactory() *CodeFactory {
	return &CodeFactory{
		used:    make(map[string]struct{}),
		randInt: rand.IntN,
		now:     time.Now,
	}
}

// Generate returns a fresh order code and records it as used before
// returning. After 100 colliding attempts it derives a code from the wall
// clock instead of failing.
func (f *CodeFactory) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for range maxCodeAttempts {
		code := fmt.Sprintf("APP-%03d-%03d", f.randInt(1000), f.randInt(1000))
		if _, taken := f.used[code]; taken {
			continue
		}
		f.used[code] = struct{}{}
		return code
	}

	// Random space exhausted (or pathologically unlucky): derive the two
	// groups from the current nanosecond timestamp, stepping forward until
	// the derived code is free.
	ns := f.now().UnixNano()
	for {
		code := fmt.Sprintf("APP-%03d-%03d", (ns/1000)%1000, ns%1000)
		if _, taken := f.used[code]; !taken {
			f.used[code] = struct{}{}
			return code
		}
		ns++
	}
}

// Used reports whether code has been handed out by this factory.
func (f *CodeFactory) Used(code string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.used[code]
	return ok
}
