// Package assignment holds the pure decision rules of the assignment engine:
// who may receive which work item, and in which order open items are offered.
// Nothing here touches storage; every function is safe for concurrent use.
package assignment

import (
	"time"

	"github.com/google/uuid"

	"proposal-review/internal/models"
)

// Candidate is a work item as seen by the selector. For reviews the item is a
// Proposal; for peer reviews it is a completed Review, and AuthorID is the
// reviewer who wrote it.
type Candidate struct {
	ItemID    uuid.UUID
	Kind      models.AssignmentKind
	AuthorID  uuid.UUID
	Target    int
	Assigned  int
	Tags      []string
	CreatedAt time.Time
}

// ProposalCandidate adapts a proposal into a review candidate
func ProposalCandidate(p *models.Proposal) Candidate {
	return Candidate{
		ItemID:    p.ID,
		Kind:      models.KindReview,
		AuthorID:  p.AuthorID,
		Target:    p.TargetReviews,
		Assigned:  p.AssignedCount,
		Tags:      p.Tags,
		CreatedAt: p.CreatedAt,
	}
}

// ReviewCandidate adapts a completed review into a peer-review candidate
func ReviewCandidate(r *models.Review) Candidate {
	return Candidate{
		ItemID:    r.ID,
		Kind:      models.KindPeerReview,
		AuthorID:  r.ReviewerID,
		Target:    r.TargetPeerReviews,
		Assigned:  r.PeerAssignedCount,
		Tags:      r.Tags,
		CreatedAt: r.CompletedAt,
	}
}

// Pairings is the set of item IDs a reviewer already holds for one kind,
// counting pending and completed assignments as well as finished records.
type Pairings map[uuid.UUID]struct{}

// NewPairings builds a set from item IDs
func NewPairings(ids ...uuid.UUID) Pairings {
	p := make(Pairings, len(ids))
	for _, id := range ids {
		p[id] = struct{}{}
	}
	return p
}

// Has reports whether the item is in the set
func (p Pairings) Has(id uuid.UUID) bool {
	_, ok := p[id]
	return ok
}

// Reason explains why a reviewer is not eligible for an item.
// The empty Reason means eligible.
type Reason string

const (
	Eligible          Reason = ""
	ReasonInactive    Reason = "reviewer_inactive"
	ReasonSelf        Reason = "self_assignment"
	ReasonAlreadyHeld Reason = "already_assigned"
	ReasonFull        Reason = "fully_staffed"
	ReasonWrongKind   Reason = "kind_mismatch"
)

// CheckEligibility applies the eligibility rules in order and returns the
// first that fails.
func CheckEligibility(reviewer *models.Reviewer, c Candidate, kind models.AssignmentKind, held Pairings) Reason {
	switch {
	case !reviewer.CanReceiveWork():
		return ReasonInactive
	case c.Kind != kind:
		return ReasonWrongKind
	case c.AuthorID == reviewer.ID:
		return ReasonSelf
	case held.Has(c.ItemID):
		return ReasonAlreadyHeld
	case c.Assigned >= c.Target:
		return ReasonFull
	}
	return Eligible
}

// IsEligible reports whether reviewer may be assigned c
func IsEligible(reviewer *models.Reviewer, c Candidate, kind models.AssignmentKind, held Pairings) bool {
	return CheckEligibility(reviewer, c, kind, held) == Eligible
}

// Filter returns the eligible subset of candidates, preserving order
func Filter(reviewer *models.Reviewer, candidates []Candidate, kind models.AssignmentKind, held Pairings) []Candidate {
	if !reviewer.CanReceiveWork() {
		return nil
	}
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if IsEligible(reviewer, c, kind, held) {
			out = append(out, c)
		}
	}
	return out
}
