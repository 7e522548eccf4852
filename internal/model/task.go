package model

import "time"

// Task priority levels, copied template → task at generation time.
const (
	PriorityLow    = "L"
	PriorityMedium = "M"
	PriorityHigh   = "H"
)

// TaskDescriptor holds the fields shared between RecurringTaskTemplate and
// Task. When a task is generated from a template these are copied once;
// later template edits do not propagate to existing tasks. The eligibility
// lists are copied separately because each entity keeps its own join tables.
type TaskDescriptor struct {
	OwnerID      *uint
	Instructions string
	ShortDesc    string
	MaxClaimants int `gorm:"default:1"`
	ReviewerID   *uint
	WorkEstimate float64 // hours of work, not elapsed time; 0 means not yet estimated
	Priority     string  `gorm:"default:M"`
	ShouldNag    bool
	StartTime    string // "15:04", empty if the task has no fixed start
	EndTime      string
}

// RecurringTaskTemplate defines a schedule for recurring tasks using one of
// two mutually exclusive modes: a day-of-week vs nth-of-month matrix
// ("every first and third Thursday") or a repeat interval ("every 90 days").
type RecurringTaskTemplate struct {
	ID             uint `gorm:"primaryKey"`
	TaskDescriptor `gorm:"embedded"`

	StartDate         time.Time
	Active            bool
	DefaultClaimantID *uint

	// Nth weekday of month:
	First  bool
	Second bool
	Third  bool
	Fourth bool
	Last   bool
	Every  bool

	// Day of week:
	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool

	// Every N days:
	RepeatInterval *int
	FlexibleDates  *bool // nil = N/A, false = fixed dates, true = flexible

	EligibleClaimants []Member `gorm:"many2many:template_eligible_claimants"`
	EligibleTags      []Tag    `gorm:"many2many:template_eligible_tags"`
	Uninterested      []Member `gorm:"many2many:template_uninterested"`

	Tasks     []Task `gorm:"foreignKey:RecurringTaskTemplateID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is one concrete occurrence of work, generated from a template or
// created by hand.
type Task struct {
	ID             uint `gorm:"primaryKey"`
	TaskDescriptor `gorm:"embedded"`

	CreationDate  time.Time
	ScheduledDate *time.Time `gorm:"uniqueIndex:idx_task_template_date"`
	Deadline      *time.Time
	WorkDone      bool
	WorkAccepted  *bool // nil until reviewed; stays nil when there is no reviewer

	// SET NULL on template delete keeps historical tasks around.
	RecurringTaskTemplateID *uint `gorm:"uniqueIndex:idx_task_template_date"`

	EligibleClaimants []Member `gorm:"many2many:task_eligible_claimants"`
	EligibleTags      []Tag    `gorm:"many2many:task_eligible_tags"`
	Uninterested      []Member `gorm:"many2many:task_uninterested"`

	Claims    []Claim `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Works     []Work  `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Closed reports whether the claimant should receive credit: the work is
// done and either nobody reviews it or the reviewer accepted it.
func (t Task) Closed() bool {
	if !t.WorkDone {
		return false
	}
	if t.ReviewerID == nil {
		return true
	}
	return t.WorkAccepted != nil && *t.WorkAccepted
}

// Open is the complement of Closed.
func (t Task) Open() bool { return !t.Closed() }

// ScheduledWeekday names the scheduled day, or "-" for undated tasks.
func (t Task) ScheduledWeekday() string {
	if t.ScheduledDate == nil {
		return "-"
	}
	return t.ScheduledDate.Weekday().String()
}

// TaskNote statuses.
const (
	NoteCritical = "C"
	NoteResolved = "R"
	NoteInfo     = "I"
)

// TaskNote is free-form commentary attached to a task: questions, hints,
// problems, review feedback. Notes become anonymous if the author leaves.
type TaskNote struct {
	ID        uint `gorm:"primaryKey"`
	AuthorID  *uint
	TaskID    uint `gorm:"index"`
	Content   string
	Status    string `gorm:"default:I"`
	CreatedAt time.Time
}

// Eligibility exposes the lists the eligibility engine works over.
func (t *Task) Eligibility() (explicit []Member, tags []Tag, uninterested []Member) {
	return t.EligibleClaimants, t.EligibleTags, t.Uninterested
}

// Eligibility exposes the lists the eligibility engine works over.
func (t *RecurringTaskTemplate) Eligibility() (explicit []Member, tags []Tag, uninterested []Member) {
	return t.EligibleClaimants, t.EligibleTags, t.Uninterested
}
