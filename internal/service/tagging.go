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
)

// ErrTaggingNotPermitted rejects a tag grant or revocation by a member
// who doesn't hold the can-tag permission for that tag.
var ErrTaggingNotPermitted = errors.New("member is not permitted to grant this tag")

// TaggingService grants and revokes tags under the can-tag permission
// rule, and mails each authorizer a daily report of the taggings they
// granted.
type TaggingService struct {
	memberRepo  *repository.MemberRepository
	eligibility *EligibilityService
	notifier    notify.Notifier
	clock       clock.Clock
	bcc         []string
	logger      *slog.Logger
}

func NewTaggingService(
	memberRepo *repository.MemberRepository,
	eligibility *EligibilityService,
	notifier notify.Notifier,
	clk clock.Clock,
	bcc []string,
	logger *slog.Logger,
) *TaggingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaggingService{
		memberRepo:  memberRepo,
		eligibility: eligibility,
		notifier:    notifier,
		clock:       clk,
		bcc:         bcc,
		logger:      logger,
	}
}

// AddTagging grants a tag to taggee if the tagger may grant it.
func (s *TaggingService) AddTagging(ctx context.Context, taggerID, taggeeID, tagID uint, canTag bool) (*model.Tagging, error) {
	permitted, err := s.eligibility.CanTagWith(ctx, taggerID, tagID)
	if err != nil {
		return nil, err
	}
	if !permitted {
		return nil, ErrTaggingNotPermitted
	}
	authorizer := taggerID
	tagging := &model.Tagging{
		TaggedMemberID:      taggeeID,
		TagID:               tagID,
		AuthorizingMemberID: &authorizer,
		CanTag:              canTag,
	}
	if err := s.memberRepo.CreateTagging(ctx, tagging); err != nil {
		return nil, err
	}
	return tagging, nil
}

// RemoveTagging revokes taggee's tag if the tagger may grant it.
func (s *TaggingService) RemoveTagging(ctx context.Context, taggerID, taggeeID, tagID uint) error {
	permitted, err := s.eligibility.CanTagWith(ctx, taggerID, tagID)
	if err != nil {
		return err
	}
	if !permitted {
		return ErrTaggingNotPermitted
	}
	return s.memberRepo.DeleteTagging(ctx, taggeeID, tagID)
}

// SendNewTaggingsReports mails each member who authorized taggings
// yesterday a report of what they granted, so a compromised can-tag
// account is noticed quickly. Authorizer-less taggings and authorizers
// without an email are skipped; delivery failures are logged and skipped
// per recipient.
func (s *TaggingService) SendNewTaggingsReports(ctx context.Context) error {
	today := s.clock.Today()
	taggings, err := s.memberRepo.TaggingsInRange(ctx, today.AddDate(0, 0, -1), today)
	if err != nil {
		return err
	}

	byAuthorizer := make(map[uint][]model.Tagging)
	for _, tagging := range taggings {
		if tagging.AuthorizingMemberID == nil {
			continue
		}
		id := *tagging.AuthorizingMemberID
		byAuthorizer[id] = append(byAuthorizer[id], tagging)
	}

	authorizerIDs := newIDSet()
	for id := range byAuthorizer {
		authorizerIDs.add(id)
	}
	for _, authorizerID := range authorizerIDs.sorted() {
		authorizer, err := s.memberRepo.FindByID(ctx, authorizerID)
		if err != nil {
			return fmt.Errorf("load member %d: %w", authorizerID, err)
		}
		if authorizer.Email == "" {
			continue
		}
		msg, err := s.buildTaggingsReport(ctx, authorizer, byAuthorizer[authorizerID])
		if err != nil {
			return err
		}
		if err := s.notifier.Send(ctx, recipient(authorizer), msg); err != nil {
			s.logger.Error("send taggings report",
				slog.Uint64("member", uint64(authorizerID)),
				slog.Any("error", err),
			)
			continue
		}
	}
	return nil
}

func (s *TaggingService) buildTaggingsReport(ctx context.Context, authorizer *model.Member, taggings []model.Tagging) (notify.Message, error) {
	var text strings.Builder
	var htmlBody strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nYou authorized these taggings yesterday:\n\n", authorizer.FriendlyName())
	fmt.Fprintf(&htmlBody, "<p>Hi %s,</p><p>You authorized these taggings yesterday:</p><ul>",
		html.EscapeString(authorizer.FriendlyName()))

	for _, tagging := range taggings {
		member, err := s.memberRepo.FindByID(ctx, tagging.TaggedMemberID)
		if err != nil {
			return notify.Message{}, fmt.Errorf("load member %d: %w", tagging.TaggedMemberID, err)
		}
		tag, err := s.memberRepo.FindTagByID(ctx, tagging.TagID)
		if err != nil {
			return notify.Message{}, fmt.Errorf("load tag %d: %w", tagging.TagID, err)
		}
		fmt.Fprintf(&text, "  - %s granted %q\n", member.FriendlyName(), tag.Name)
		fmt.Fprintf(&htmlBody, "<li>%s granted <b>%s</b></li>",
			html.EscapeString(member.FriendlyName()), html.EscapeString(tag.Name))
	}

	text.WriteString("\nIf you don't recognize one of these, please revoke it.\n")
	htmlBody.WriteString("</ul><p>If you don't recognize one of these, please revoke it.</p>")

	return notify.Message{
		Subject:  "New Taggings Report, " + s.clock.Today().Format("Mon Jan 02"),
		TextBody: text.String(),
		HTMLBody: htmlBody.String(),
		BCC:      s.bcc,
	}, nil
}
