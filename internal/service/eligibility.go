package service

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"volunteer-planner/internal/model"
	"volunteer-planner/internal/repository"
)

// TaskLike is anything with eligibility lists: a task or the template it
// was generated from.
type TaskLike interface {
	Eligibility() (explicit []model.Member, tags []model.Tag, uninterested []model.Member)
}

// idSet is the working representation for member-set algebra.
type idSet map[uint]struct{}

func newIDSet(ids ...uint) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) add(ids ...uint) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s idSet) subtract(other idSet) {
	for id := range other {
		delete(s, id)
	}
}

func (s idSet) contains(id uint) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) sorted() []uint {
	ids := make([]uint, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// EligibilityService computes who may claim a task. It is pure set
// algebra over identifier sets fetched fresh from the repositories on
// every call; tag membership is never cached.
type EligibilityService struct {
	memberRepo *repository.MemberRepository
	claimRepo  *repository.ClaimRepository
}

func NewEligibilityService(memberRepo *repository.MemberRepository, claimRepo *repository.ClaimRepository) *EligibilityService {
	return &EligibilityService{memberRepo: memberRepo, claimRepo: claimRepo}
}

// EligibleMemberIDs is the union of the explicit eligible-claimant list
// and every member holding any of the eligible tags.
func (s *EligibilityService) EligibleMemberIDs(ctx context.Context, tl TaskLike) (idSet, error) {
	explicit, tags, _ := tl.Eligibility()
	eligible := newIDSet()
	for _, m := range explicit {
		eligible.add(m.ID)
	}
	tagIDs := make([]uint, 0, len(tags))
	for _, tag := range tags {
		tagIDs = append(tagIDs, tag.ID)
	}
	tagged, err := s.memberRepo.MemberIDsWithAnyTag(ctx, tagIDs)
	if err != nil {
		return nil, err
	}
	eligible.add(tagged...)
	return eligible, nil
}

// EligibleMembers resolves the eligible set to member rows, sorted by id.
func (s *EligibilityService) EligibleMembers(ctx context.Context, tl TaskLike) ([]model.Member, error) {
	ids, err := s.EligibleMemberIDs(ctx, tl)
	if err != nil {
		return nil, err
	}
	return s.memberRepo.FindByIDs(ctx, ids.sorted())
}

// UninterestedMemberIDs is the task's explicit opt-out list.
func (s *EligibilityService) UninterestedMemberIDs(tl TaskLike) idSet {
	_, _, uninterested := tl.Eligibility()
	set := newIDSet()
	for _, m := range uninterested {
		set.add(m.ID)
	}
	return set
}

// CurrentClaimantIDs returns members holding a Current claim on the task.
func (s *EligibilityService) CurrentClaimantIDs(ctx context.Context, taskID uint) (idSet, error) {
	ids, err := s.claimRepo.CurrentClaimantIDs(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return newIDSet(ids...), nil
}

// IsFullyClaimed reports whether Current claims have reached the task's
// claimant cap.
func (s *EligibilityService) IsFullyClaimed(ctx context.Context, task *model.Task) (bool, error) {
	count, err := s.claimRepo.CountCurrent(ctx, task.ID)
	if err != nil {
		return false, err
	}
	return count >= task.MaxClaimants, nil
}

// CanTagWith reports whether the member holds a tagging for the tag with
// the can-tag permission. Used by the tagging subsystem only.
func (s *EligibilityService) CanTagWith(ctx context.Context, memberID, tagID uint) (bool, error) {
	tagging, err := s.memberRepo.FindTagging(ctx, memberID, tagID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return tagging.CanTag, nil
}
