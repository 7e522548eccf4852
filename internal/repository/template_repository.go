package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"volunteer-planner/internal/model"
)

// TemplateRepository handles recurring task templates.
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(ctx context.Context, tpl *model.RecurringTaskTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(tpl).Error; err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func (r *TemplateRepository) Save(ctx context.Context, tpl *model.RecurringTaskTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(tpl).Error; err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// FindByID loads a template with its eligibility lists.
func (r *TemplateRepository) FindByID(ctx context.Context, id uint) (*model.RecurringTaskTemplate, error) {
	var tpl model.RecurringTaskTemplate
	if err := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags").
		Preload("Uninterested").
		First(&tpl, id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ListActive returns every active template with eligibility lists loaded,
// in the order the generator walks them.
func (r *TemplateRepository) ListActive(ctx context.Context) ([]model.RecurringTaskTemplate, error) {
	var templates []model.RecurringTaskTemplate
	if err := r.db.WithContext(ctx).
		Preload("EligibleClaimants").
		Preload("EligibleTags").
		Preload("Uninterested").
		Where("active = ?", true).
		Order("id ASC").
		Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// GreatestScheduledDate returns the maximum scheduled date among the
// template's tasks, or nil when none exist yet.
func (r *TemplateRepository) GreatestScheduledDate(ctx context.Context, templateID uint) (*time.Time, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("recurring_task_template_id = ? AND scheduled_date IS NOT NULL", templateID).
		Order("scheduled_date DESC").
		First(&task).Error
	switch {
	case err == nil:
		return task.ScheduledDate, nil
	case err == gorm.ErrRecordNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("greatest scheduled date: %w", err)
	}
}

// Deactivate stops future generation without touching existing tasks.
func (r *TemplateRepository) Deactivate(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.RecurringTaskTemplate{}).
		Where("id = ?", id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	return nil
}

// Delete removes a template. Task rows survive with a nulled link.
func (r *TemplateRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Task{}).
			Where("recurring_task_template_id = ?", id).
			Update("recurring_task_template_id", nil).Error; err != nil {
			return fmt.Errorf("unlink tasks: %w", err)
		}
		if err := tx.Delete(&model.RecurringTaskTemplate{}, id).Error; err != nil {
			return fmt.Errorf("delete template: %w", err)
		}
		return nil
	})
}
