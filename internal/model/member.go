package model

import "time"

// Member represents a person in the organization. Email may be empty for
// members who never provided one; such members are skipped by the
// reminder pipeline.
type Member struct {
	ID             uint   `gorm:"primaryKey"`
	Username       string `gorm:"uniqueIndex"`
	FirstName      string
	LastName       string
	Email          string
	Active         bool
	TelegramChatID int64 // optional delivery hint; 0 means none
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FriendlyName prefers the first name, falling back to the username.
func (m Member) FriendlyName() string {
	if m.FirstName != "" {
		return m.FirstName
	}
	return m.Username
}

// Tag marks some attribute of a member: a skill, a shop role, a permission.
type Tag struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Meaning   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tagging records who holds a tag, who granted it, and whether the holder
// may grant the same tag to others.
type Tagging struct {
	ID                  uint `gorm:"primaryKey"`
	TaggedMemberID      uint `gorm:"index:idx_tagging_member_tag,unique"`
	TagID               uint `gorm:"index:idx_tagging_member_tag,unique"`
	AuthorizingMemberID *uint
	CanTag              bool
	CreatedAt           time.Time
}

// Worker is the per-member volunteering profile. Members without one are
// treated as naggable, so a row usually exists only to opt out. Like the
// other persisted booleans, ShouldNag carries no column default: gorm
// rewrites an inserted false to the default.
type Worker struct {
	ID        uint `gorm:"primaryKey"`
	MemberID  uint `gorm:"uniqueIndex"`
	ShouldNag bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
