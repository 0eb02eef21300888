package raffle

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickDeterministic(t *testing.T) {
	seed := testSeed(t)

	first, err := Pick(seed, 50, 48)
	require.NoError(t, err)
	second, err := Pick(seed, 50, 48)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other := seed
	other[0] ^= 0xff
	third, err := Pick(other, 50, 48)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestPickDistinctAndInRange(t *testing.T) {
	winners, err := Pick(testSeed(t), 50, 48)
	require.NoError(t, err)
	require.Len(t, winners, 48)

	seen := make(map[uint32]bool)
	for _, w := range winners {
		assert.Less(t, w, uint32(50))
		assert.False(t, seen[w], "index %d drawn twice", w)
		seen[w] = true
	}
}

func TestPickFullPermutation(t *testing.T) {
	winners, err := Pick(testSeed(t), 10, 10)
	require.NoError(t, err)
	sorted := append([]uint32(nil), winners...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, w := range sorted {
		assert.Equal(t, uint32(i), w)
	}
}

func TestPickBounds(t *testing.T) {
	seed := testSeed(t)

	_, err := Pick(seed, 3, 4)
	if !errors.Is(err, ErrTooManyWinners) {
		t.Fatalf("expected ErrTooManyWinners, got %v", err)
	}

	none, err := Pick(seed, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	single, err := Pick(seed, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, single)

	large, err := Pick(seed, 1<<31, 3)
	require.NoError(t, err)
	assert.Len(t, large, 3)
}

func TestPRNGBetweenStaysInRange(t *testing.T) {
	rng := newPRNG(testSeed(t))
	for i := 0; i < 1000; i++ {
		if v := rng.between(6); v > 6 {
			t.Fatalf("value %d out of [0, 6]", v)
		}
	}
	if v := rng.between(0); v != 0 {
		t.Fatalf("expected 0, got %d", v)
	}
}
