package service

import (
	"context"
	"errors"
	"fmt"

	"volunteer-planner/internal/clock"
	"volunteer-planner/internal/model"
	"volunteer-planner/internal/repository"
)

var (
	// ErrIneligibleClaimant rejects a claim from a member outside the
	// task's eligible set.
	ErrIneligibleClaimant = errors.New("member is not eligible to claim this task")

	// ErrTaskFullyClaimed rejects a claim on a task at its claimant cap.
	ErrTaskFullyClaimed = errors.New("task is fully claimed")

	// ErrUninterestedClaimant rejects a claim from a member who marked
	// themselves uninterested in the task.
	ErrUninterestedClaimant = errors.New("member has marked this task as not interesting")

	// ErrNotReviewer rejects a review from anyone but the task's
	// designated reviewer.
	ErrNotReviewer = errors.New("member is not the task's reviewer")
)

// ClaimService is the state machine over claims and work records:
// claim creation, expiry, queued-claim promotion, work logging and
// default-claimant abandonment.
type ClaimService struct {
	taskRepo    *repository.TaskRepository
	claimRepo   *repository.ClaimRepository
	memberRepo  *repository.MemberRepository
	eligibility *EligibilityService
	clock       clock.Clock
}

func NewClaimService(taskRepo *repository.TaskRepository, claimRepo *repository.ClaimRepository, memberRepo *repository.MemberRepository, eligibility *EligibilityService, clk clock.Clock) *ClaimService {
	return &ClaimService{
		taskRepo:    taskRepo,
		claimRepo:   claimRepo,
		memberRepo:  memberRepo,
		eligibility: eligibility,
		clock:       clk,
	}
}

// CreateClaim stakes a Current claim for the member. The eligibility and
// interest checks run first; the capacity check runs inside the creation
// transaction so concurrent claimants cannot both take the last slot.
func (s *ClaimService) CreateClaim(ctx context.Context, memberID, taskID uint, hours float64) (*model.Claim, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.eligibility.EligibleMemberIDs(ctx, task)
	if err != nil {
		return nil, err
	}
	if !eligible.contains(memberID) {
		return nil, ErrIneligibleClaimant
	}
	if s.eligibility.UninterestedMemberIDs(task).contains(memberID) {
		return nil, ErrUninterestedClaimant
	}

	claim := &model.Claim{
		TaskID:       taskID,
		MemberID:     memberID,
		Date:         s.clock.Today(),
		HoursClaimed: hours,
		Status:       model.ClaimCurrent,
	}
	err = s.claimRepo.CreateWithCapacity(ctx, claim, task.MaxClaimants)
	switch {
	case errors.Is(err, repository.ErrClaimCapacity):
		return nil, ErrTaskFullyClaimed
	case err != nil:
		return nil, err
	}
	return claim, nil
}

// QueueClaim stakes a Queued claim that waits for capacity. The same
// eligibility guards apply.
func (s *ClaimService) QueueClaim(ctx context.Context, memberID, taskID uint, hours float64) (*model.Claim, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.eligibility.EligibleMemberIDs(ctx, task)
	if err != nil {
		return nil, err
	}
	if !eligible.contains(memberID) {
		return nil, ErrIneligibleClaimant
	}
	if s.eligibility.UninterestedMemberIDs(task).contains(memberID) {
		return nil, ErrUninterestedClaimant
	}

	claim := &model.Claim{
		TaskID:       taskID,
		MemberID:     memberID,
		Date:         s.clock.Today(),
		HoursClaimed: hours,
		Status:       model.ClaimQueued,
	}
	if err := s.claimRepo.CreateWithCapacity(ctx, claim, task.MaxClaimants); err != nil {
		return nil, err
	}
	return claim, nil
}

// ExpireClaim retires a Current claim and promotes queued claimants into
// the freed slot.
func (s *ClaimService) ExpireClaim(ctx context.Context, claimID uint) error {
	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return err
	}
	if err := s.claimRepo.SetStatus(ctx, claim.ID, model.ClaimExpired); err != nil {
		return err
	}
	return s.PromoteQueuedClaims(ctx, claim.TaskID)
}

// PromoteQueuedClaims moves the oldest Queued claims to Current while the
// task has free slots.
func (s *ClaimService) PromoteQueuedClaims(ctx context.Context, taskID uint) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	for {
		current, err := s.claimRepo.CountCurrent(ctx, taskID)
		if err != nil {
			return err
		}
		if current >= task.MaxClaimants {
			return nil
		}
		queued, err := s.claimRepo.OldestQueued(ctx, taskID)
		if err != nil {
			return err
		}
		if queued == nil {
			return nil
		}
		if err := s.claimRepo.SetStatus(ctx, queued.ID, model.ClaimCurrent); err != nil {
			return err
		}
	}
}

// RecordWork appends a work row against a task. It never mutates the
// claim; hours can be logged against historical claims in any status.
func (s *ClaimService) RecordWork(ctx context.Context, workerID, taskID uint, claimID *uint, hours float64) (*model.Work, error) {
	if hours <= 0 {
		return nil, &model.ValidationError{Msg: "work hours must be positive"}
	}
	work := &model.Work{
		WorkerID: workerID,
		TaskID:   taskID,
		ClaimID:  claimID,
		Hours:    hours,
		When:     s.clock.Today(),
	}
	if err := s.claimRepo.CreateWork(ctx, work); err != nil {
		return nil, err
	}
	return work, nil
}

// VerifyClaim stamps the claim as confirmed by its holder. The reminder
// pipeline uses the stamp to tell confirmed default claims from silent
// ones.
func (s *ClaimService) VerifyClaim(ctx context.Context, claimID uint) error {
	return s.claimRepo.SetVerified(ctx, claimID, s.clock.Now())
}

// MarkWorkDone flags the task's work as complete.
func (s *ClaimService) MarkWorkDone(ctx context.Context, taskID uint) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	task.WorkDone = true
	return s.taskRepo.Save(ctx, task)
}

// ReviewWork records the reviewer's verdict. Review before completion is
// a validation error, and only the designated reviewer may review.
func (s *ClaimService) ReviewWork(ctx context.Context, taskID, reviewerID uint, accepted bool) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.ReviewerID == nil || *task.ReviewerID != reviewerID {
		return ErrNotReviewer
	}
	if !task.WorkDone {
		return &model.ValidationError{Msg: "work cannot be reviewed before it is marked as completed"}
	}
	task.WorkAccepted = &accepted
	return s.taskRepo.Save(ctx, task)
}

// AbandonStaleDefaultClaims deletes unverified default-claimant claims on
// tasks scheduled one to two days out. The default claimant was asked to
// confirm twice and stayed silent, so the task opens up to the whole
// eligible pool; if the claimant was missing from the explicit eligible
// list they are added first, so the follow-up nag reaches them too.
// Returns the number of claims abandoned.
func (s *ClaimService) AbandonStaleDefaultClaims(ctx context.Context) (int, error) {
	today := s.clock.Today()
	claims, err := s.claimRepo.StaleDefaultClaims(ctx, today.AddDate(0, 0, 1), today.AddDate(0, 0, 2))
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, claim := range claims {
		task, err := s.taskRepo.FindByID(ctx, claim.TaskID)
		if err != nil {
			return abandoned, fmt.Errorf("load task %d: %w", claim.TaskID, err)
		}
		inExplicitList := false
		for _, m := range task.EligibleClaimants {
			if m.ID == claim.MemberID {
				inExplicitList = true
				break
			}
		}
		if !inExplicitList {
			member, err := s.memberRepo.FindByID(ctx, claim.MemberID)
			if err != nil {
				return abandoned, fmt.Errorf("load member %d: %w", claim.MemberID, err)
			}
			if err := s.taskRepo.AppendEligibleClaimant(ctx, task, member); err != nil {
				return abandoned, err
			}
		}
		if err := s.claimRepo.Delete(ctx, claim.ID); err != nil {
			return abandoned, err
		}
		abandoned++
	}
	return abandoned, nil
}
