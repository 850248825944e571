package ssc

import "math/rand"

// DeterministicReader wraps a math/rand source behind an io.Reader so
// tests can reproduce a specific Split output. It must never be wired
// into Params.Rand outside tests: math/rand is not cryptographically
// secure and using it in production would make shares below the
// threshold statistically distinguishable from random, defeating the
// secrecy property the codec depends on.
type DeterministicReader struct {
	src *rand.Rand
}

func NewDeterministicReader(seed int64) *DeterministicReader {
	return &DeterministicReader{src: rand.New(rand.NewSource(seed))}
}

func (d *DeterministicReader) Read(p []byte) (int, error) {
	return d.src.Read(p)
}
