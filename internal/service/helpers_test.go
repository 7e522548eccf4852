package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"volunteer-planner/internal/clock"
	"volunteer-planner/internal/model"
	"volunteer-planner/internal/notify"
	"volunteer-planner/internal/repository"
)

var testDBCounter atomic.Int64

// fixture wires every repository and service against a fresh in-memory
// database, with the clock frozen at 2024-05-01 (a Wednesday).
type fixture struct {
	db          *gorm.DB
	members     *repository.MemberRepository
	templates   *repository.TemplateRepository
	tasks       *repository.TaskRepository
	claimRepo   *repository.ClaimRepository
	nags        *repository.NagRepository
	eligibility *EligibilityService
	claims      *ClaimService
	generator   *GeneratorService
	notifier    *fakeNotifier
	clock       clock.Frozen
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:svctest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := repository.NewDB(dsn)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	frozen := clock.Frozen{Instant: time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &fixture{
		db:        db,
		members:   repository.NewMemberRepository(db),
		templates: repository.NewTemplateRepository(db),
		tasks:     repository.NewTaskRepository(db),
		claimRepo: repository.NewClaimRepository(db),
		nags:      repository.NewNagRepository(db),
		notifier:  &fakeNotifier{},
		clock:     frozen,
	}
	f.eligibility = NewEligibilityService(f.members, f.claimRepo)
	f.claims = NewClaimService(f.tasks, f.claimRepo, f.members, f.eligibility, frozen)
	f.generator = NewGeneratorService(f.templates, f.tasks, frozen, logger)
	return f
}

func (f *fixture) reminders(t *testing.T) *ReminderService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReminderService(
		f.tasks, f.claimRepo, f.members, f.nags,
		f.eligibility, f.claims, f.notifier, f.clock,
		"https://example.org", []string{"records@example.org"}, logger,
	)
}

func (f *fixture) taggings(t *testing.T) *TaggingService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTaggingService(
		f.members, f.eligibility, f.notifier, f.clock,
		[]string{"records@example.org"}, logger,
	)
}

func (f *fixture) member(t *testing.T, username string) *model.Member {
	t.Helper()
	m := &model.Member{Username: username, Email: username + "@example.org", Active: true}
	if err := f.members.Create(context.Background(), m); err != nil {
		t.Fatalf("create member %s: %v", username, err)
	}
	return m
}

// task creates a task directly in the store with the given eligible
// claimants and scheduled date.
func (f *fixture) task(t *testing.T, desc string, scheduled time.Time, maxClaimants int, eligible ...*model.Member) *model.Task {
	t.Helper()
	d := scheduled
	task := &model.Task{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: desc, MaxClaimants: maxClaimants, Priority: model.PriorityMedium, ShouldNag: true},
		CreationDate:   f.clock.Today(),
		ScheduledDate:  &d,
	}
	for _, m := range eligible {
		task.EligibleClaimants = append(task.EligibleClaimants, *m)
	}
	if err := f.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("create task %q: %v", desc, err)
	}
	return task
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeNotifier records every send and can be told to fail for specific
// email addresses.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
}

type sentMessage struct {
	To  notify.Recipient
	Msg notify.Message
}

func (f *fakeNotifier) Send(_ context.Context, to notify.Recipient, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[to.Email]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{To: to, Msg: msg})
	return nil
}

func (f *fakeNotifier) sentTo(email string) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, s := range f.sent {
		if s.To.Email == email {
			out = append(out, s)
		}
	}
	return out
}
