package model

import "time"

// Claim statuses. Queued claims wait for capacity; Current claims hold a
// slot; Expired claims are kept for history.
const (
	ClaimCurrent = "C"
	ClaimExpired = "X"
	ClaimQueued  = "Q"
)

// Claim is a member's stake on a task.
type Claim struct {
	ID           uint `gorm:"primaryKey"`
	TaskID       uint `gorm:"index:idx_claim_task_member,unique"`
	MemberID     uint `gorm:"index:idx_claim_task_member,unique"`
	Date         time.Time
	HoursClaimed float64 // work time, not elapsed time
	Status       string
	DateVerified *time.Time // set when the claimant confirms a default claim
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Verified reports whether the claimant has explicitly confirmed the claim.
func (c Claim) Verified() bool { return c.DateVerified != nil }

// Work is a logged contribution of hours against a task. Rows are append
// only; reporting sums them, nothing mutates them.
type Work struct {
	ID        uint `gorm:"primaryKey"`
	WorkerID  uint `gorm:"index"`
	TaskID    uint `gorm:"index"`
	ClaimID   *uint
	Hours     float64
	When      time.Time
	CreatedAt time.Time
}

// Nag records one outbound reminder. Only the digest of the single-use
// token is stored; the raw token goes out in the message and is never
// persisted or logged.
type Nag struct {
	ID              uint    `gorm:"primaryKey"`
	WhoID           uint    `gorm:"index"`
	AuthTokenDigest string  `gorm:"uniqueIndex"`
	Tasks           []Task  `gorm:"many2many:nag_tasks"`
	Claims          []Claim `gorm:"many2many:nag_claims"`
	CreatedAt       time.Time
}
