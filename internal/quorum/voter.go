package quorum

import "math"

// Policy controls how many yes votes a roster of a given size needs.
type Policy struct {
	// Rate is the fraction of the roster required, in (0, 1].
	Rate float64
	// Minimum is the floor on the vote count regardless of roster size.
	Minimum int
}

func (p Policy) normalized() Policy {
	if p.Rate <= 0 || p.Rate > 1 {
		p.Rate = 1
	}
	if p.Minimum < 0 {
		p.Minimum = 0
	}
	return p
}

// Voter tracks the eligible roster and the votes cast in the current cycle.
// The threshold is derived from the live roster size on every call so a
// shrinking roster can never delay a pass that should already have occurred.
type Voter struct {
	policy Policy
	roster map[string]struct{}
	votes  map[string]struct{}
}

// New returns a Voter with an empty roster under the given policy.
func New(policy Policy) *Voter {
	return &Voter{
		policy: policy.normalized(),
		roster: map[string]struct{}{},
		votes:  map[string]struct{}{},
	}
}

// SetRoster replaces the eligible roster. Votes from participants absent
// from the new roster are discarded so the vote set stays a subset.
func (v *Voter) SetRoster(ids []string) {
	roster := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		roster[id] = struct{}{}
	}
	v.roster = roster
	for id := range v.votes {
		if _, ok := roster[id]; !ok {
			delete(v.votes, id)
		}
	}
}

// RemoveParticipant drops the participant and any vote they cast. Removing
// an unknown id is a no-op; membership changes race with votes by design of
// the protocol, not of this package.
func (v *Voter) RemoveParticipant(id string) {
	delete(v.roster, id)
	delete(v.votes, id)
}

// ClearVotes empties the vote set and leaves the roster untouched. Called at
// cycle boundaries.
func (v *Voter) ClearVotes() {
	v.votes = map[string]struct{}{}
}

// CastVote records a yes vote. It reports false when the participant is not
// on the roster or has already voted; a repeat vote is already-counted, not
// a failure.
func (v *Voter) CastVote(id string) bool {
	if _, ok := v.roster[id]; !ok {
		return false
	}
	if _, ok := v.votes[id]; ok {
		return false
	}
	v.votes[id] = struct{}{}
	return true
}

// RosterSize returns the number of eligible voters.
func (v *Voter) RosterSize() int {
	return len(v.roster)
}

// VoteCount returns the number of votes cast this cycle.
func (v *Voter) VoteCount() int {
	return len(v.votes)
}

// Threshold computes ceil(max(|roster| * rate, minimum)). An empty roster
// yields the policy minimum; whether that passes is Passed's concern.
func (v *Voter) Threshold() int {
	need := float64(len(v.roster)) * v.policy.Rate
	if floor := float64(v.policy.Minimum); need < floor {
		need = floor
	}
	return int(math.Ceil(need))
}

// Passed reports whether the cast votes meet the threshold. At least one
// vote is always required so an empty roster under a zero minimum never
// passes on its own.
func (v *Voter) Passed() bool {
	return len(v.votes) > 0 && len(v.votes) >= v.Threshold()
}
