package registry

import (
	"slices"
	"sort"
	"time"

	"github.com/codebreaker-project/codebreaker/internal/game"
)

// ScoreboardCapacity is the number of ranked finishers kept.
const ScoreboardCapacity = 10

// ScoreEntry is one ranked winner.
type ScoreEntry struct {
	PLID       int           `json:"plid"`
	Code       game.Trial    `json:"code"`
	Trials     int           `json:"trials"`
	Debug      bool          `json:"debug"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Mode is DEBUG for caller-supplied codes, PLAY otherwise.
func (e ScoreEntry) Mode() string {
	return game.ModeName(e.Debug)
}

// Scoreboard keeps the best finishers ordered by ascending trial count.
// Equal counts keep arrival order. Not safe for concurrent use.
type Scoreboard struct {
	capacity int
	entries  []ScoreEntry
}

// NewScoreboard creates an empty board.
func NewScoreboard(capacity int) *Scoreboard {
	if capacity <= 0 {
		capacity = ScoreboardCapacity
	}
	return &Scoreboard{
		capacity: capacity,
		entries:  make([]ScoreEntry, 0, capacity),
	}
}

// Add admits e if the board has room or e strictly beats the worst entry,
// which it then evicts. Reports whether e was admitted.
func (b *Scoreboard) Add(e ScoreEntry) bool {
	if len(b.entries) >= b.capacity {
		if e.Trials >= b.entries[len(b.entries)-1].Trials {
			return false
		}
		b.entries = b.entries[:len(b.entries)-1]
	}

	idx := sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Trials > e.Trials
	})
	b.entries = slices.Insert(b.entries, idx, e)
	return true
}

// Entries returns a copy of the ranking, best first.
func (b *Scoreboard) Entries() []ScoreEntry {
	return slices.Clone(b.entries)
}

// Len is the number of ranked entries.
func (b *Scoreboard) Len() int {
	return len(b.entries)
}
