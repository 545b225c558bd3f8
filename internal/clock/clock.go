package clock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SuffixLength is the number of characters produced by RandomSuffix.
const SuffixLength = 7

// Clock supplies the current time to components that measure durations.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces short suffixes used to disambiguate correlation ids.
type IDGenerator interface {
	Suffix() string
}

// System is the wall clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// RandomSuffix generates short lowercase hex suffixes from random UUIDs.
// Collisions are unlikely but not impossible.
type RandomSuffix struct{}

// Suffix returns SuffixLength characters of a fresh random UUID.
func (RandomSuffix) Suffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:SuffixLength]
}

// Fake is a manually driven clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock positioned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Sequence yields "s1", "s2", ... and is safe for concurrent use.
type Sequence struct {
	mu sync.Mutex
	n  int
}

// Suffix returns the next value in the sequence.
func (s *Sequence) Suffix() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("s%d", s.n)
}

// Fixed always returns the same suffix. Useful to force id collisions.
type Fixed string

// Suffix returns the fixed value.
func (f Fixed) Suffix() string {
	return string(f)
}
