package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextPool(t *testing.T) {
	rng := &sequenceRand{}
	pool := NewTextPool(map[int][]string{
		300: {"long one", "long two"},
		60:  {"  short  ", "   "},
		180: {},
	}, rng)

	assert.Equal(t, []int{60, 300}, pool.Tiers())

	text, err := pool.Pick(60)
	require.NoError(t, err)
	assert.Equal(t, "short", text)

	first, err := pool.Pick(300)
	require.NoError(t, err)
	second, err := pool.Pick(300)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"long one", "long two"}, []string{first, second})

	_, err = pool.Pick(180)
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Words("a b c"))
	assert.Equal(t, []string{"a", "b"}, Words("  a \n b  "))
	assert.Empty(t, Words(""))
}
