package contribution

import (
	"context"

	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// STORE - Persistence interface for members and contributions
// =============================================================================

type Store interface {
	// SaveMember inserts or replaces a member.
	SaveMember(ctx context.Context, m Member) error

	// GetMember returns a *generic.NotFoundError when missing.
	GetMember(ctx context.Context, id generic.MemberID) (*Member, error)

	ListMembers(ctx context.Context) ([]Member, error)

	// CreateContribution returns generic.ErrDuplicateContribution when the
	// member already has a record for c.Month.
	CreateContribution(ctx context.Context, c Contribution) error

	GetContribution(ctx context.Context, id generic.ContributionID) (*Contribution, error)

	// UpdateContribution overwrites status and payment fields.
	UpdateContribution(ctx context.Context, c Contribution) error

	// ListContributions returns matching records ordered by month.
	ListContributions(ctx context.Context, filter Filter) ([]Contribution, error)
}

// Filter narrows ListContributions. Zero values match everything.
type Filter struct {
	MemberID generic.MemberID
	Status   Status
	Month    generic.Month

	// Before keeps records strictly earlier than this month.
	Before generic.Month
}

func (f Filter) Matches(c Contribution) bool {
	if f.MemberID != "" && c.MemberID != f.MemberID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if !f.Month.IsZero() && !c.Month.Equal(f.Month) {
		return false
	}
	if !f.Before.IsZero() && !c.Month.Before(f.Before) {
		return false
	}
	return true
}
