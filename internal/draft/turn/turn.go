// Package turn computes snake-draft turn order. Everything in here is pure:
// no clock, no store, no side effects.
package turn

import "github.com/google/uuid"

// OrderIndex returns the draftOrder index of the team on the clock at the
// given position. Odd rounds walk the order forward, even rounds walk it in
// reverse. Round and pickInRound are 1-indexed.
func OrderIndex(round, pickInRound, teamCount int) int {
	if round%2 == 1 {
		return pickInRound - 1
	}
	return teamCount - pickInRound
}

// OnClock returns the team on the clock at the given position.
func OnClock(round, pickInRound int, draftOrder []uuid.UUID) uuid.UUID {
	return draftOrder[OrderIndex(round, pickInRound, len(draftOrder))]
}

// OverallPick converts a (round, pickInRound) position to the 1-indexed
// overall pick number.
func OverallPick(round, pickInRound, teamCount int) int {
	return (round-1)*teamCount + pickInRound
}

// Advance returns the position following (round, pickInRound). When the round
// is exhausted the pick index resets to 1 and the round increments; callers
// decide completeness via Complete.
func Advance(round, pickInRound, teamCount int) (nextRound, nextPickInRound int) {
	pickInRound++
	if pickInRound > teamCount {
		pickInRound = 1
		round++
	}
	return round, pickInRound
}

// Complete reports whether a draft with the given total rounds has no picks
// left once play reaches round.
func Complete(round, rounds int) bool {
	return round > rounds
}
