package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"volunteer-planner/internal/model"
)

// ErrClaimCapacity means the task already has max-claimants Current
// claims. Raised inside the creation transaction so two concurrent
// claimants cannot both take the last slot.
var ErrClaimCapacity = errors.New("task is fully claimed")

// ClaimRepository handles claims and logged work.
type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// CreateWithCapacity writes the claim only if the task still has a free
// slot. The count and the insert run in one transaction, and the unique
// index on (task, member) backstops duplicate claims that race past it.
func (r *ClaimRepository) CreateWithCapacity(ctx context.Context, claim *model.Claim, maxClaimants int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&model.Claim{}).
			Where("task_id = ? AND status = ?", claim.TaskID, model.ClaimCurrent).
			Count(&current).Error; err != nil {
			return fmt.Errorf("count current claims: %w", err)
		}
		if claim.Status == model.ClaimCurrent && current >= int64(maxClaimants) {
			return ErrClaimCapacity
		}
		if err := tx.Create(claim).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateClaim
			}
			return fmt.Errorf("create claim: %w", err)
		}
		return nil
	})
	return err
}

func (r *ClaimRepository) FindByID(ctx context.Context, id uint) (*model.Claim, error) {
	var claim model.Claim
	if err := r.db.WithContext(ctx).First(&claim, id).Error; err != nil {
		return nil, err
	}
	return &claim, nil
}

// CurrentClaimantIDs returns the members holding a Current claim on the
// task.
func (r *ClaimRepository) CurrentClaimantIDs(ctx context.Context, taskID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.Claim{}).
		Where("task_id = ? AND status = ?", taskID, model.ClaimCurrent).
		Pluck("member_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("current claimants: %w", err)
	}
	return ids, nil
}

func (r *ClaimRepository) CountCurrent(ctx context.Context, taskID uint) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Claim{}).
		Where("task_id = ? AND status = ?", taskID, model.ClaimCurrent).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count current claims: %w", err)
	}
	return int(count), nil
}

func (r *ClaimRepository) SetStatus(ctx context.Context, claimID uint, status string) error {
	if err := r.db.WithContext(ctx).Model(&model.Claim{}).
		Where("id = ?", claimID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("set claim status: %w", err)
	}
	return nil
}

func (r *ClaimRepository) SetVerified(ctx context.Context, claimID uint, when time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.Claim{}).
		Where("id = ?", claimID).
		Update("date_verified", when).Error; err != nil {
		return fmt.Errorf("set claim verified: %w", err)
	}
	return nil
}

func (r *ClaimRepository) Delete(ctx context.Context, claimID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Claim{}, claimID).Error; err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	return nil
}

// OldestQueued returns the longest-waiting Queued claim on the task, or
// nil when the queue is empty.
func (r *ClaimRepository) OldestQueued(ctx context.Context, taskID uint) (*model.Claim, error) {
	var claim model.Claim
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status = ?", taskID, model.ClaimQueued).
		Order("created_at ASC").
		First(&claim).Error
	switch {
	case err == nil:
		return &claim, nil
	case err == gorm.ErrRecordNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("oldest queued claim: %w", err)
	}
}

// StaleDefaultClaims finds Current, unverified claims held by the
// template-designated default claimant on tasks scheduled within
// [start, end] inclusive. These are the claims the abandon and verify
// passes operate on.
func (r *ClaimRepository) StaleDefaultClaims(ctx context.Context, start, end time.Time) ([]model.Claim, error) {
	var claims []model.Claim
	if err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = claims.task_id").
		Joins("JOIN recurring_task_templates ON recurring_task_templates.id = tasks.recurring_task_template_id").
		Where("claims.status = ?", model.ClaimCurrent).
		Where("claims.date_verified IS NULL").
		Where("claims.member_id = recurring_task_templates.default_claimant_id").
		Where("tasks.scheduled_date BETWEEN ? AND ?", start, end).
		Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("stale default claims: %w", err)
	}
	return claims, nil
}

// SumHoursClaimedInPeriod totals Current claimed hours per member over
// tasks scheduled in [start, end] inclusive. The reminder pipeline uses
// it to find heavily scheduled members.
func (r *ClaimRepository) SumHoursClaimedInPeriod(ctx context.Context, start, end time.Time) (map[uint]float64, error) {
	rows, err := r.db.WithContext(ctx).Model(&model.Claim{}).
		Select("claims.member_id, SUM(claims.hours_claimed) AS total").
		Joins("JOIN tasks ON tasks.id = claims.task_id").
		Where("claims.status = ?", model.ClaimCurrent).
		Where("tasks.scheduled_date BETWEEN ? AND ?", start, end).
		Group("claims.member_id").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("sum claimed hours: %w", err)
	}
	defer rows.Close()

	totals := make(map[uint]float64)
	for rows.Next() {
		var memberID uint
		var total float64
		if err := rows.Scan(&memberID, &total); err != nil {
			return nil, fmt.Errorf("scan claimed hours: %w", err)
		}
		totals[memberID] = total
	}
	return totals, rows.Err()
}

func (r *ClaimRepository) CreateWork(ctx context.Context, work *model.Work) error {
	if err := r.db.WithContext(ctx).Create(work).Error; err != nil {
		return fmt.Errorf("create work: %w", err)
	}
	return nil
}

func (r *ClaimRepository) ListWorkByTask(ctx context.Context, taskID uint) ([]model.Work, error) {
	var works []model.Work
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("\"when\" ASC").
		Find(&works).Error; err != nil {
		return nil, err
	}
	return works, nil
}

// SumWorkHours totals logged hours against a task.
func (r *ClaimRepository) SumWorkHours(ctx context.Context, taskID uint) (float64, error) {
	var total *float64
	if err := r.db.WithContext(ctx).Model(&model.Work{}).
		Select("SUM(hours)").
		Where("task_id = ?", taskID).
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum work hours: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
