package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"volunteer-planner/internal/model"
)

// NagRepository records outbound reminders and enforces token-digest
// uniqueness.
type NagRepository struct {
	db *gorm.DB
}

func NewNagRepository(db *gorm.DB) *NagRepository {
	return &NagRepository{db: db}
}

// DigestExists reports whether any prior nag used the given token digest.
func (r *NagRepository) DigestExists(ctx context.Context, digest string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Nag{}).
		Where("auth_token_digest = ?", digest).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check token digest: %w", err)
	}
	return count > 0, nil
}

// Create writes the nag together with its task and claim associations.
func (r *NagRepository) Create(ctx context.Context, nag *model.Nag) error {
	if err := r.db.WithContext(ctx).Create(nag).Error; err != nil {
		return fmt.Errorf("create nag: %w", err)
	}
	return nil
}

func (r *NagRepository) ListByMember(ctx context.Context, memberID uint) ([]model.Nag, error) {
	var nags []model.Nag
	if err := r.db.WithContext(ctx).
		Preload("Tasks").
		Preload("Claims").
		Where("who_id = ?", memberID).
		Order("created_at DESC").
		Find(&nags).Error; err != nil {
		return nil, err
	}
	return nags, nil
}

// FindByDigest resolves a consumed token digest back to its nag, for the
// link-consumption surface outside this core.
func (r *NagRepository) FindByDigest(ctx context.Context, digest string) (*model.Nag, error) {
	var nag model.Nag
	if err := r.db.WithContext(ctx).
		Preload("Tasks").
		Preload("Claims").
		Where("auth_token_digest = ?", digest).
		First(&nag).Error; err != nil {
		return nil, err
	}
	return &nag, nil
}
