// Package pacing decides, per upcoming turn, whether fresh environment
// text is due and whether a health event must fire. It is pure over the
// room's counters; callers inject the randomness source.
package pacing

import "math/rand"

// Source is the randomness the scheduler draws from. *rand.Rand
// satisfies it; callers needing concurrent access wrap one in a lock.
type Source interface {
	Intn(n int) int
	Float64() float64
}

var _ Source = (*rand.Rand)(nil)

const (
	// MinWindow and MaxWindow bound the random draw between consecutive
	// scene-change turns. A window shorter than 2 is never produced.
	MinWindow = 2
	MaxWindow = 4

	// HPEventChance is the per-turn probability of an early health event,
	// before the forced last-chance turn of the window.
	HPEventChance = 0.25
)

// Decision carries the scheduler's verdict for one upcoming turn.
// The flags travel with the generation request and the resulting
// TurnResult; downstream code never re-derives them from content.
type Decision struct {
	IsSceneChange       bool
	IsHPEvent           bool
	NextSceneChangeTurn int
}

// Decide computes the pacing flags for the turn about to be generated.
// turn is the count of committed turns (the upcoming turn's index),
// nextSceneChange is the scheduled boundary (0 when unset), and
// hpEventOccurred reports whether the current window already fired its
// health event.
//
// Every window between two scene-change turns contains exactly one
// health event: it may fire early with HPEventChance, and is forced on
// the window's last opportunity if it has not fired yet.
func Decide(turn, nextSceneChange int, hpEventOccurred bool, rng Source) Decision {
	if nextSceneChange <= 0 {
		nextSceneChange = turn + window(rng)
	}

	d := Decision{
		IsSceneChange:       turn == 0 || turn >= nextSceneChange,
		NextSceneChangeTurn: nextSceneChange,
	}

	if d.IsSceneChange {
		// A scene change opens a new window; its health event is scheduled
		// strictly inside that window.
		d.NextSceneChangeTurn = turn + 1 + window(rng)
		return d
	}

	if hpEventOccurred {
		return d
	}
	if LastChance(turn, nextSceneChange) {
		d.IsHPEvent = true
		return d
	}
	d.IsHPEvent = rng.Float64() < HPEventChance
	return d
}

// LastChance reports whether the upcoming turn is the final opportunity
// for the window's health event before the next scene change.
func LastChance(turn, nextSceneChange int) bool {
	return turn+1 >= nextSceneChange-1
}

// ScheduleNext draws the boundary for the window that opens after a
// scene change committed at the given turn. The result is always at
// least two turns past the committed turn.
func ScheduleNext(turn int, rng Source) int {
	return turn + 1 + window(rng)
}

func window(rng Source) int {
	return MinWindow + rng.Intn(MaxWindow-MinWindow+1)
}
