package goid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent_stableWithinGoroutine(t *testing.T) {
	a := Current()
	b := Current()
	require.NotZero(t, a)
	assert.Equal(t, a, b)
}

func TestCurrent_distinctAcrossGoroutines(t *testing.T) {
	const n = 16
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			ids[i] = Current()
		}()
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, n+1)
	seen[Current()] = struct{}{}
	for _, id := range ids {
		require.NotZero(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate goroutine id %d", id)
		seen[id] = struct{}{}
	}
}

func TestParse(t *testing.T) {
	for _, tc := range [...]struct {
		name string
		in   string
		want uint64
	}{
		{"typical", "goroutine 123 [running]:\nmain.main()", 123},
		{"single digit", "goroutine 7 [", 7},
		{"bad prefix", "thread 5 [running]", 0},
		{"short", "gor", 0},
		{"no digits", "goroutine [running]", 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parse([]byte(tc.in)))
		})
	}
}
