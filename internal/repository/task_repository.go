package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"volunteer-planner/internal/model"
)

var (
	// ErrDuplicateInstance means a task already exists for the same
	// (template, scheduled date) pair. The unique index raises it when two
	// generator runs race past the existence fast path.
	ErrDuplicateInstance = errors.New("task instance already exists for this template and date")

	// ErrDuplicateClaim means the member already has a claim on the task.
	ErrDuplicateClaim = errors.New("member already has a claim on this task")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// TaskRepository handles task instances and their notes.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateInstance
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ExistsForTemplateDate is the generator's idempotency fast path; the
// unique index on (template, scheduled date) is the actual guarantee.
func (r *TaskRepository) ExistsForTemplateDate(ctx context.Context, templateID uint, date time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("recurring_task_template_id = ? AND scheduled_date = ?", templateID, date).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check existing instance: %w", err)
	}
	return count > 0, nil
}

// FindByID loads a task with its eligibility lists.
func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags").
		Preload("Uninterested").
		First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// ListByTemplate returns the template's instances in schedule order.
func (r *TaskRepository) ListByTemplate(ctx context.Context, templateID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("recurring_task_template_id = ?", templateID).
		Order("scheduled_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListNaggableInRange returns tasks scheduled in [start, endExclusive)
// that want reminders, with eligibility lists loaded.
func (r *TaskRepository) ListNaggableInRange(ctx context.Context, start, endExclusive time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags").
		Preload("Uninterested").
		Where("scheduled_date >= ? AND scheduled_date < ? AND should_nag = ?", start, endExclusive, true).
		Order("scheduled_date ASC, start_time ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// AppendEligibleClaimant adds a member to the task's explicit eligible
// list if not already present.
func (r *TaskRepository) AppendEligibleClaimant(ctx context.Context, task *model.Task, member *model.Member) error {
	if err := r.db.WithContext(ctx).Model(task).
		Association("EligibleClaimants").Append(member); err != nil {
		return fmt.Errorf("append eligible claimant: %w", err)
	}
	return nil
}

func (r *TaskRepository) AddNote(ctx context.Context, note *model.TaskNote) error {
	if err := r.db.WithContext(ctx).Create(note).Error; err != nil {
		return fmt.Errorf("add task note: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListNotes(ctx context.Context, taskID uint) ([]model.TaskNote, error) {
	var notes []model.TaskNote
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *TaskRepository) UpdateNoteStatus(ctx context.Context, noteID uint, status string) error {
	if err := r.db.WithContext(ctx).Model(&model.TaskNote{}).
		Where("id = ?", noteID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("update note status: %w", err)
	}
	return nil
}
