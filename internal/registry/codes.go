package registry

import (
	"math/rand/v2"
	"sync"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// CodeSource produces secret codes for non-debug games.
type CodeSource interface {
	NewCode() game.Trial
}

// RandomCodes draws each peg uniformly from the color alphabet using its own
// generator, so tests can seed it without touching global state.
type RandomCodes struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomCodes creates a seeded code source.
func NewRandomCodes(seed uint64) *RandomCodes {
	return &RandomCodes{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// NewCode implements CodeSource.
func (r *RandomCodes) NewCode() game.Trial {
	r.mu.Lock()
	defer r.mu.Unlock()

	var t game.Trial
	for i := range t {
		t[i] = game.Colors[r.rng.IntN(len(game.Colors))]
	}
	return t
}
