package game

import (
	"math/rand/v2"
	"slices"
	"strings"
)

// Rand is the random source used for text and room code selection.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// TextPool holds the race passages available for each duration tier.
type TextPool struct {
	texts map[int][]string
	rng   Rand
}

// NewTextPool copies texts, dropping blank passages and empty tiers. A nil
// rng uses the process-wide source.
func NewTextPool(texts map[int][]string, rng Rand) *TextPool {
	if rng == nil {
		rng = globalRand{}
	}

	pool := &TextPool{texts: make(map[int][]string), rng: rng}
	for tier, list := range texts {
		var kept []string
		for _, text := range list {
			if text = strings.TrimSpace(text); text != "" {
				kept = append(kept, text)
			}
		}
		if len(kept) > 0 {
			pool.texts[tier] = kept
		}
	}
	return pool
}

// Pick returns a uniformly chosen passage for tier.
func (p *TextPool) Pick(tier int) (string, error) {
	list, ok := p.texts[tier]
	if !ok {
		return "", ErrUnknownTier
	}
	return list[p.rng.IntN(len(list))], nil
}

// Tiers lists the configured tiers in ascending order.
func (p *TextPool) Tiers() []int {
	tiers := make([]int, 0, len(p.texts))
	for tier := range p.texts {
		tiers = append(tiers, tier)
	}
	slices.Sort(tiers)
	return tiers
}

// Words splits a passage into the sequence players type through.
func Words(text string) []string {
	return strings.Fields(text)
}
