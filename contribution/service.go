package contribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// SERVICE - Planner + store
// =============================================================================

// Service persists what the planner builds. Writes for one member hold the
// member's lock so two bulk creates cannot interleave.
type Service struct {
	Store  Store
	Locker generic.Locker
	Config generic.CommunityConfig
}

func NewService(store Store, locker generic.Locker, cfg generic.CommunityConfig) *Service {
	if locker == nil {
		locker = generic.NewKeyedMutex()
	}
	return &Service{Store: store, Locker: locker, Config: cfg.WithDefaults()}
}

func (s *Service) SaveMember(ctx context.Context, m Member) error {
	if m.ID == "" {
		return &generic.InputError{Field: "member_id", Reason: "is required"}
	}
	return s.Store.SaveMember(ctx, m)
}

func (s *Service) GetMember(ctx context.Context, id generic.MemberID) (*Member, error) {
	return s.Store.GetMember(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Contribution, error) {
	return s.Store.ListContributions(ctx, f)
}

// Plan returns the member's contribution position as of now.
func (s *Service) Plan(ctx context.Context, id generic.MemberID, now time.Time) (Plan, error) {
	m, err := s.Store.GetMember(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	existing, err := s.Store.ListContributions(ctx, Filter{MemberID: id})
	if err != nil {
		return Plan{}, err
	}
	return BuildPlan(s.Config, *m, existing, now)
}

// CatchUp prices the joining payment for a member joining on joiningDate.
func (s *Service) CatchUp(joiningDate, now time.Time) (CatchUp, error) {
	return CalculateCatchUp(s.Config, joiningDate, now)
}

// CreateMissing creates records for the selected missing months. A month
// that gains a record between planning and commit is skipped.
func (s *Service) CreateMissing(ctx context.Context, cmd CreateMissingCommand, now time.Time) (CreateMissingResult, error) {
	unlock, err := s.Locker.Lock(ctx, generic.LockKey("member", string(cmd.MemberID)))
	if err != nil {
		return CreateMissingResult{}, err
	}
	defer unlock()

	m, err := s.Store.GetMember(ctx, cmd.MemberID)
	if err != nil {
		return CreateMissingResult{}, err
	}
	existing, err := s.Store.ListContributions(ctx, Filter{MemberID: cmd.MemberID})
	if err != nil {
		return CreateMissingResult{}, err
	}

	prepared, err := PrepareMissing(s.Config, *m, existing, cmd, now)
	if err != nil {
		return CreateMissingResult{}, err
	}

	res := CreateMissingResult{Skipped: prepared.Skipped}
	for _, c := range prepared.Created {
		if err := s.Store.CreateContribution(ctx, c); err != nil {
			if errors.Is(err, generic.ErrDuplicateContribution) {
				res.Skipped = append(res.Skipped, c.Month)
				continue
			}
			return res, fmt.Errorf("failed to create contribution %s for %s: %w", c.Month, c.MemberID, err)
		}
		res.Created = append(res.Created, c)
	}

	log.Printf("[Contribution] member %s: created %d, skipped %d", cmd.MemberID, len(res.Created), len(res.Skipped))
	return res, nil
}

// RecordPayment marks one contribution paid.
func (s *Service) RecordPayment(ctx context.Context, id generic.ContributionID, cmd PaymentCommand, now time.Time) (*Contribution, error) {
	c, err := s.Store.GetContribution(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.Locker.Lock(ctx, generic.LockKey("member", string(c.MemberID)))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock.
	c, err = s.Store.GetContribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.RecordPayment(cmd, now); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateContribution(ctx, *c); err != nil {
		return nil, fmt.Errorf("failed to save contribution %s: %w", id, err)
	}
	log.Printf("[Contribution] %s %s paid by %s", c.MemberID, c.Month, c.PaymentMethod)
	return c, nil
}

// SetupMonth creates the month's pending records for every member who owes
// one. It returns only the records it created.
func (s *Service) SetupMonth(ctx context.Context, month generic.Month, now time.Time) ([]Contribution, error) {
	members, err := s.Store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.Store.ListContributions(ctx, Filter{Month: month})
	if err != nil {
		return nil, err
	}
	prepared, err := PrepareMonth(s.Config, members, existing, month, now)
	if err != nil {
		return nil, err
	}

	var created []Contribution
	for _, c := range prepared {
		if err := s.Store.CreateContribution(ctx, c); err != nil {
			if errors.Is(err, generic.ErrDuplicateContribution) {
				continue
			}
			return created, fmt.Errorf("failed to set up %s for %s: %w", month, c.MemberID, err)
		}
		created = append(created, c)
	}
	if len(created) > 0 {
		log.Printf("[Contribution] set up %s for %d members", month, len(created))
	}
	return created, nil
}

// SweepOverdue flags pending records from months that have ended.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.Store.ListContributions(ctx, Filter{Status: StatusPending, Before: generic.MonthOf(now)})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, p := range pending {
		changed, err := s.markOverdue(ctx, p.MemberID, p.ID, now)
		if err != nil {
			return n, err
		}
		if changed {
			n++
		}
	}
	if n > 0 {
		log.Printf("[Contribution] marked %d contributions overdue", n)
	}
	return n, nil
}

// markOverdue re-reads the record under the member lock so a payment
// recorded since the listing is not overwritten.
func (s *Service) markOverdue(ctx context.Context, member generic.MemberID, id generic.ContributionID, now time.Time) (bool, error) {
	unlock, err := s.Locker.Lock(ctx, generic.LockKey("member", string(member)))
	if err != nil {
		return false, err
	}
	defer unlock()

	c, err := s.Store.GetContribution(ctx, id)
	if err != nil {
		return false, err
	}
	if !c.MarkOverdue(now) {
		return false, nil
	}
	if err := s.Store.UpdateContribution(ctx, *c); err != nil {
		return false, fmt.Errorf("failed to mark %s overdue: %w", id, err)
	}
	return true, nil
}
