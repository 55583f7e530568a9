package relay

import (
	"slices"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/telemetry"
)

// quorumReached reports whether votes reach half of the registry size.
// The comparison is non-strict: 2 of 4 is enough, 2 of 5 is not.
func quorumReached(votes, registrySize int) bool {
	return 2*votes >= registrySize
}

// castVote records voter's deny against target and returns the vote count.
// The quorum is measured against the registry as it is right now; once it is
// met the target is terminated before this returns.
func (r *Relay) castVote(target, voter *Session) (int, error) {
	if target.deniedBy(voter.id) {
		return len(target.deniers), redundantVote(target.id)
	}

	target.deniers = append(target.deniers, voter.id)
	telemetry.DenyVotesTotal.Inc()
	target.deliver(deniedMessage(voter.id))

	votes := len(target.deniers)
	size := r.sessions.Size()
	log.WithFields(logging.Fields{
		"at":       "relay.castVote",
		"target":   target.id,
		"voter":    voter.id,
		"votes":    votes,
		"registry": size,
	}).Info("deny_vote_recorded")

	if quorumReached(votes, size) {
		telemetry.EvictionsTotal.Inc()
		r.terminate(target, Reason{Why: WhyDenied, By: slices.Clone(target.deniers)})
	}
	return votes, nil
}
