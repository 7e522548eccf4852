package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"volunteer-planner/internal/clock"
	"volunteer-planner/internal/model"
	"volunteer-planner/internal/notify"
	"volunteer-planner/internal/repository"
	"volunteer-planner/internal/token"
)

// Members already committed to this many claimed hours over the next two
// weeks are left alone by the nag pass unless a task is in a panic
// situation.
const (
	heavyScheduleHours    = 6.0
	heavyScheduleDays     = 14
	nagWindowDays         = 3 // today through two days out
	verifyWindowStartDays = 3
	verifyWindowEndDays   = 4
)

// ReminderService orchestrates the reminder pipeline: abandon stale
// default claims, ask near-term default claimants to verify, then call
// for volunteers on unclaimed upcoming tasks. The passes always run in
// that order because each reads state the previous one may have changed.
type ReminderService struct {
	taskRepo    *repository.TaskRepository
	claimRepo   *repository.ClaimRepository
	memberRepo  *repository.MemberRepository
	nagRepo     *repository.NagRepository
	eligibility *EligibilityService
	claims      *ClaimService
	notifier    notify.Notifier
	clock       clock.Clock
	host        string
	bcc         []string
	logger      *slog.Logger
}

func NewReminderService(
	taskRepo *repository.TaskRepository,
	claimRepo *repository.ClaimRepository,
	memberRepo *repository.MemberRepository,
	nagRepo *repository.NagRepository,
	eligibility *EligibilityService,
	claims *ClaimService,
	notifier notify.Notifier,
	clk clock.Clock,
	host string,
	bcc []string,
	logger *slog.Logger,
) *ReminderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderService{
		taskRepo:    taskRepo,
		claimRepo:   claimRepo,
		memberRepo:  memberRepo,
		nagRepo:     nagRepo,
		eligibility: eligibility,
		claims:      claims,
		notifier:    notifier,
		clock:       clk,
		host:        host,
		bcc:         bcc,
		logger:      logger,
	}
}

// Run executes the three passes. A failure in one pass is reported but
// never stops the later passes.
func (s *ReminderService) Run(ctx context.Context) error {
	var errs []error

	abandoned, err := s.claims.AbandonStaleDefaultClaims(ctx)
	if err != nil {
		s.logger.Error("abandon pass", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("abandon pass: %w", err))
	} else if abandoned > 0 {
		s.logger.Info("abandoned stale default claims", slog.Int("count", abandoned))
	}

	if err := s.VerifyDefaultClaims(ctx); err != nil {
		s.logger.Error("verify pass", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("verify pass: %w", err))
	}

	if err := s.NagForWorkers(ctx); err != nil {
		s.logger.Error("nag pass", slog.Any("error", err))
		errs = append(errs, fmt.Errorf("nag pass: %w", err))
	}

	return errors.Join(errs...)
}

// VerifyDefaultClaims asks each default claimant with an unverified
// Current claim on a task three to four days out to explicitly confirm,
// via a single-use token link. One nag per claim; delivery failures are
// logged and skipped per recipient.
func (s *ReminderService) VerifyDefaultClaims(ctx context.Context) error {
	today := s.clock.Today()
	claims, err := s.claimRepo.StaleDefaultClaims(ctx,
		today.AddDate(0, 0, verifyWindowStartDays),
		today.AddDate(0, 0, verifyWindowEndDays))
	if err != nil {
		return err
	}

	for _, claim := range claims {
		member, err := s.memberRepo.FindByID(ctx, claim.MemberID)
		if err != nil {
			return fmt.Errorf("load member %d: %w", claim.MemberID, err)
		}
		task, err := s.taskRepo.FindByID(ctx, claim.TaskID)
		if err != nil {
			return fmt.Errorf("load task %d: %w", claim.TaskID, err)
		}

		raw, digest, err := s.newToken(ctx)
		if err != nil {
			return err
		}
		nag := &model.Nag{
			WhoID:           member.ID,
			AuthTokenDigest: digest,
			Tasks:           []model.Task{*task},
			Claims:          []model.Claim{claim},
		}
		if err := s.nagRepo.Create(ctx, nag); err != nil {
			return err
		}

		msg := s.buildVerifyRequest(member, task, raw)
		if err := s.notifier.Send(ctx, recipient(member), msg); err != nil {
			s.logger.Error("send verify request",
				slog.Uint64("member", uint64(member.ID)),
				slog.Any("error", err),
			)
			continue
		}
	}
	return nil
}

// NagForWorkers emails everyone who could still claim an understaffed
// task scheduled today through two days out. Heavily scheduled members
// are spared unless the task is a panic situation: scheduled today at
// high priority. One nag per member aggregates all their matching tasks.
func (s *ReminderService) NagForWorkers(ctx context.Context) error {
	today := s.clock.Today()

	tasks, err := s.taskRepo.ListNaggableInRange(ctx, today, today.AddDate(0, 0, nagWindowDays))
	if err != nil {
		return err
	}

	heavyTotals, err := s.claimRepo.SumHoursClaimedInPeriod(ctx, today, today.AddDate(0, 0, heavyScheduleDays))
	if err != nil {
		return err
	}
	heavy := newIDSet()
	for memberID, hours := range heavyTotals {
		if hours >= heavyScheduleHours {
			heavy.add(memberID)
		}
	}

	excludedIDs, err := s.memberRepo.NagExcludedMemberIDs(ctx)
	if err != nil {
		return err
	}
	excluded := newIDSet(excludedIDs...)

	nagLists := make(map[uint][]model.Task)
	for i := range tasks {
		task := &tasks[i]
		if task.Closed() {
			continue
		}
		full, err := s.eligibility.IsFullyClaimed(ctx, task)
		if err != nil {
			return err
		}
		if full {
			continue
		}

		potentials, err := s.eligibility.EligibleMemberIDs(ctx, task)
		if err != nil {
			return err
		}
		claimants, err := s.eligibility.CurrentClaimantIDs(ctx, task.ID)
		if err != nil {
			return err
		}
		potentials.subtract(claimants)
		potentials.subtract(s.eligibility.UninterestedMemberIDs(task))
		potentials.subtract(excluded)

		panicSituation := task.ScheduledDate != nil &&
			task.ScheduledDate.Equal(today) &&
			task.Priority == model.PriorityHigh
		if !panicSituation {
			potentials.subtract(heavy)
		}

		for _, memberID := range potentials.sorted() {
			nagLists[memberID] = append(nagLists[memberID], *task)
		}
	}

	for _, memberID := range sortedKeys(nagLists) {
		memberTasks := nagLists[memberID]
		member, err := s.memberRepo.FindByID(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load member %d: %w", memberID, err)
		}

		raw, digest, err := s.newToken(ctx)
		if err != nil {
			return err
		}
		nag := &model.Nag{
			WhoID:           memberID,
			AuthTokenDigest: digest,
			Tasks:           memberTasks,
		}
		if err := s.nagRepo.Create(ctx, nag); err != nil {
			return err
		}

		msg := s.buildCallForVolunteers(member, memberTasks, raw)
		if err := s.notifier.Send(ctx, recipient(member), msg); err != nil {
			s.logger.Error("send call for volunteers",
				slog.Uint64("member", uint64(memberID)),
				slog.Any("error", err),
			)
			continue
		}
	}
	return nil
}

// newToken generates a single-use token whose digest is unique against
// every nag ever recorded. A digest collision regenerates silently.
func (s *ReminderService) newToken(ctx context.Context) (raw, digest string, err error) {
	var lookupErr error
	raw, digest, err = token.Generate(func(d string) bool {
		exists, err := s.nagRepo.DigestExists(ctx, d)
		if err != nil {
			lookupErr = err
			return false
		}
		return !exists
	})
	if lookupErr != nil {
		return "", "", lookupErr
	}
	return raw, digest, err
}

func recipient(m *model.Member) notify.Recipient {
	return notify.Recipient{
		Name:           m.FriendlyName(),
		Email:          m.Email,
		TelegramChatID: m.TelegramChatID,
	}
}

func (s *ReminderService) buildVerifyRequest(member *model.Member, task *model.Task, rawToken string) notify.Message {
	dow := task.ScheduledWeekday()
	link := fmt.Sprintf("%s/tasks/verify/%s", s.host, rawToken)

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", member.FriendlyName())
	fmt.Fprintf(&text, "You have the default claim on %q", task.ShortDesc)
	if task.ScheduledDate != nil {
		fmt.Fprintf(&text, ", scheduled for %s %s", dow, task.ScheduledDate.Format("2006-01-02"))
	}
	text.WriteString(".\n\nPlease confirm that you're still available:\n")
	fmt.Fprintf(&text, "%s\n\nIf we don't hear from you, the task will be offered to all eligible members.\n", link)

	var htmlBody strings.Builder
	fmt.Fprintf(&htmlBody, "<p>Hi %s,</p>", html.EscapeString(member.FriendlyName()))
	fmt.Fprintf(&htmlBody, "<p>You have the default claim on <b>%s</b>", html.EscapeString(task.ShortDesc))
	if task.ScheduledDate != nil {
		fmt.Fprintf(&htmlBody, ", scheduled for %s %s", dow, task.ScheduledDate.Format("2006-01-02"))
	}
	fmt.Fprintf(&htmlBody, ".</p><p><a href=%q>Please confirm that you're still available.</a></p>", link)
	htmlBody.WriteString("<p>If we don't hear from you, the task will be offered to all eligible members.</p>")

	return notify.Message{
		Subject:  fmt.Sprintf("Please verify your availability for this %s", dow),
		TextBody: text.String(),
		HTMLBody: htmlBody.String(),
		BCC:      s.bcc,
	}
}

func (s *ReminderService) buildCallForVolunteers(member *model.Member, tasks []model.Task, rawToken string) notify.Message {
	link := fmt.Sprintf("%s/tasks/offer/%s", s.host, rawToken)

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThese upcoming tasks still need workers:\n\n", member.FriendlyName())
	for _, task := range tasks {
		text.WriteString("  - " + task.ShortDesc)
		if task.ScheduledDate != nil {
			fmt.Fprintf(&text, " on %s %s", task.ScheduledWeekday(), task.ScheduledDate.Format("2006-01-02"))
		}
		if task.StartTime != "" {
			fmt.Fprintf(&text, " at %s", task.StartTime)
		}
		if task.WorkEstimate > 0 {
			fmt.Fprintf(&text, " (about %.2g hours)", task.WorkEstimate)
		}
		text.WriteByte('\n')
	}
	fmt.Fprintf(&text, "\nClaim one here:\n%s\n", link)

	var htmlBody strings.Builder
	fmt.Fprintf(&htmlBody, "<p>Hi %s,</p><p>These upcoming tasks still need workers:</p><ul>", html.EscapeString(member.FriendlyName()))
	for _, task := range tasks {
		htmlBody.WriteString("<li>" + html.EscapeString(task.ShortDesc))
		if task.ScheduledDate != nil {
			fmt.Fprintf(&htmlBody, " on %s %s", task.ScheduledWeekday(), task.ScheduledDate.Format("2006-01-02"))
		}
		if task.WorkEstimate > 0 {
			fmt.Fprintf(&htmlBody, " (about %.2g hours)", task.WorkEstimate)
		}
		htmlBody.WriteString("</li>")
	}
	fmt.Fprintf(&htmlBody, "</ul><p><a href=%q>Claim one here.</a></p>", link)

	return notify.Message{
		Subject:  "Call for Volunteers, " + s.clock.Today().Format("Mon Jan 02"),
		TextBody: text.String(),
		HTMLBody: htmlBody.String(),
		BCC:      s.bcc,
	}
}

func sortedKeys(m map[uint][]model.Task) []uint {
	set := newIDSet()
	for id := range m {
		set.add(id)
	}
	return set.sorted()
}
