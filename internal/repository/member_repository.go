package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"volunteer-planner/internal/model"
)

// MemberRepository handles members, tags, taggings and worker profiles.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id uint) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var members []model.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// MemberIDsWithAnyTag returns ids of members holding at least one of the
// given tags. Membership is re-queried on every call; eligibility must
// reflect the taggings current at evaluation time.
func (r *MemberRepository) MemberIDsWithAnyTag(ctx context.Context, tagIDs []uint) ([]uint, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.Tagging{}).
		Distinct("tagged_member_id").
		Where("tag_id IN ?", tagIDs).
		Pluck("tagged_member_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("members with tags: %w", err)
	}
	return ids, nil
}

// NagExcludedMemberIDs returns ids of members the reminder pipeline must
// never write to: worker profile opted out, no email on file, or the
// member is deactivated.
func (r *MemberRepository) NagExcludedMemberIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.Worker{}).
		Where("should_nag = ?", false).
		Pluck("member_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("opted-out workers: %w", err)
	}
	var more []uint
	if err := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("email = ? OR active = ?", "", false).
		Pluck("id", &more).Error; err != nil {
		return nil, fmt.Errorf("unreachable members: %w", err)
	}
	return append(ids, more...), nil
}

func (r *MemberRepository) FindTagByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *MemberRepository) FindTagByID(ctx context.Context, id uint) (*model.Tag, error) {
	var tag model.Tag
	if err := r.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *MemberRepository) CreateTag(ctx context.Context, tag *model.Tag) error {
	if err := r.db.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// FindTagging returns the tagging row for (member, tag), or
// gorm.ErrRecordNotFound.
func (r *MemberRepository) FindTagging(ctx context.Context, memberID, tagID uint) (*model.Tagging, error) {
	var tagging model.Tagging
	if err := r.db.WithContext(ctx).
		Where("tagged_member_id = ? AND tag_id = ?", memberID, tagID).
		First(&tagging).Error; err != nil {
		return nil, err
	}
	return &tagging, nil
}

func (r *MemberRepository) CreateTagging(ctx context.Context, tagging *model.Tagging) error {
	if err := r.db.WithContext(ctx).Create(tagging).Error; err != nil {
		return fmt.Errorf("create tagging: %w", err)
	}
	return nil
}

func (r *MemberRepository) DeleteTagging(ctx context.Context, memberID, tagID uint) error {
	if err := r.db.WithContext(ctx).
		Where("tagged_member_id = ? AND tag_id = ?", memberID, tagID).
		Delete(&model.Tagging{}).Error; err != nil {
		return fmt.Errorf("delete tagging: %w", err)
	}
	return nil
}

// TaggingsInRange lists taggings granted in [start, endExclusive), for
// the new-taggings reports.
func (r *MemberRepository) TaggingsInRange(ctx context.Context, start, endExclusive time.Time) ([]model.Tagging, error) {
	var taggings []model.Tagging
	if err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, endExclusive).
		Order("created_at ASC").
		Find(&taggings).Error; err != nil {
		return nil, err
	}
	return taggings, nil
}

func (r *MemberRepository) FindWorker(ctx context.Context, memberID uint) (*model.Worker, error) {
	var worker model.Worker
	if err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&worker).Error; err != nil {
		return nil, err
	}
	return &worker, nil
}

func (r *MemberRepository) SaveWorker(ctx context.Context, worker *model.Worker) error {
	if err := r.db.WithContext(ctx).Save(worker).Error; err != nil {
		return fmt.Errorf("save worker: %w", err)
	}
	return nil
}
