package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"volunteer-planner/internal/model"
)

func TestAddTaggingRequiresCanTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	granter := f.member(t, "granter")
	plain := f.member(t, "plain")
	newcomer := f.member(t, "newcomer")

	tag := &model.Tag{Name: "welder", Meaning: "can use the welding shop"}
	if err := f.members.CreateTag(ctx, tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if err := f.members.CreateTagging(ctx, &model.Tagging{TaggedMemberID: granter.ID, TagID: tag.ID, CanTag: true}); err != nil {
		t.Fatalf("seed granter: %v", err)
	}

	svc := f.taggings(t)

	if _, err := svc.AddTagging(ctx, plain.ID, newcomer.ID, tag.ID, false); !errors.Is(err, ErrTaggingNotPermitted) {
		t.Fatalf("grant without permission error = %v, want ErrTaggingNotPermitted", err)
	}

	tagging, err := svc.AddTagging(ctx, granter.ID, newcomer.ID, tag.ID, false)
	if err != nil {
		t.Fatalf("AddTagging: %v", err)
	}
	if tagging.AuthorizingMemberID == nil || *tagging.AuthorizingMemberID != granter.ID {
		t.Fatalf("authorizer = %v, want granter", tagging.AuthorizingMemberID)
	}

	// The grant does not carry can-tag unless asked for, so the new
	// holder cannot grant onward.
	if _, err := svc.AddTagging(ctx, newcomer.ID, plain.ID, tag.ID, false); !errors.Is(err, ErrTaggingNotPermitted) {
		t.Fatalf("onward grant error = %v, want ErrTaggingNotPermitted", err)
	}

	if err := svc.RemoveTagging(ctx, plain.ID, newcomer.ID, tag.ID); !errors.Is(err, ErrTaggingNotPermitted) {
		t.Fatalf("revoke without permission error = %v, want ErrTaggingNotPermitted", err)
	}
	if err := svc.RemoveTagging(ctx, granter.ID, newcomer.ID, tag.ID); err != nil {
		t.Fatalf("RemoveTagging: %v", err)
	}
}

// Each authorizer gets their own report covering only the taggings they
// granted yesterday. Authorizer-less rows and grants outside the window
// stay out of it.
func TestSendNewTaggingsReportsPerAuthorizer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	greta := f.member(t, "greta")
	greta.FirstName = "Greta"
	greta.LastName = "Granter"
	if err := f.db.Save(greta).Error; err != nil {
		t.Fatalf("update greta: %v", err)
	}
	oscar := f.member(t, "oscar")
	holder := f.member(t, "holder")
	other := f.member(t, "other")

	machinist := &model.Tag{Name: "machinist", Meaning: "can run the mill"}
	welder := &model.Tag{Name: "welder", Meaning: "can use the welding shop"}
	for _, tag := range []*model.Tag{machinist, welder} {
		if err := f.members.CreateTag(ctx, tag); err != nil {
			t.Fatalf("create tag: %v", err)
		}
	}

	yesterday := time.Date(2024, time.April, 30, 12, 0, 0, 0, time.UTC)
	twoDaysAgo := time.Date(2024, time.April, 29, 12, 0, 0, 0, time.UTC)
	seed := []*model.Tagging{
		{TaggedMemberID: holder.ID, TagID: machinist.ID, AuthorizingMemberID: &greta.ID, CreatedAt: yesterday},
		{TaggedMemberID: other.ID, TagID: welder.ID, AuthorizingMemberID: &oscar.ID, CreatedAt: yesterday},
		// Too old, and a legacy row with no authorizer: neither reported.
		{TaggedMemberID: other.ID, TagID: machinist.ID, AuthorizingMemberID: &greta.ID, CreatedAt: twoDaysAgo},
		{TaggedMemberID: holder.ID, TagID: welder.ID, CreatedAt: yesterday},
	}
	for _, tagging := range seed {
		if err := f.members.CreateTagging(ctx, tagging); err != nil {
			t.Fatalf("seed tagging: %v", err)
		}
	}

	if err := f.taggings(t).SendNewTaggingsReports(ctx); err != nil {
		t.Fatalf("SendNewTaggingsReports: %v", err)
	}

	gretaMail := f.notifier.sentTo("greta@example.org")
	if len(gretaMail) != 1 {
		t.Fatalf("greta received %d reports, want 1", len(gretaMail))
	}
	msg := gretaMail[0].Msg
	if want := "New Taggings Report, Wed May 01"; msg.Subject != want {
		t.Errorf("subject = %q, want %q", msg.Subject, want)
	}
	for _, want := range []string{"Hi Greta,", "holder", `"machinist"`} {
		if !strings.Contains(msg.TextBody, want) {
			t.Errorf("report missing %q:\n%s", want, msg.TextBody)
		}
	}
	if strings.Contains(msg.TextBody, "welder") {
		t.Errorf("report includes another authorizer's grant:\n%s", msg.TextBody)
	}
	if strings.Contains(msg.TextBody, "other") {
		t.Errorf("report includes a grant outside the window:\n%s", msg.TextBody)
	}

	if got := f.notifier.sentTo("oscar@example.org"); len(got) != 1 {
		t.Fatalf("oscar received %d reports, want 1", len(got))
	}
}

func TestSendNewTaggingsReportsSkipsUnreachable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noEmail := f.member(t, "no_email")
	noEmail.Email = ""
	if err := f.db.Save(noEmail).Error; err != nil {
		t.Fatalf("update member: %v", err)
	}
	bouncing := f.member(t, "bouncing")
	reachable := f.member(t, "reachable")
	holder := f.member(t, "holder")

	tag := &model.Tag{Name: "laser", Meaning: "can run the laser cutter"}
	if err := f.members.CreateTag(ctx, tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	yesterday := time.Date(2024, time.April, 30, 12, 0, 0, 0, time.UTC)
	grants := []struct{ authorizer, taggee *model.Member }{
		{noEmail, bouncing},
		{bouncing, reachable},
		{reachable, holder},
	}
	for _, g := range grants {
		tagging := &model.Tagging{
			TaggedMemberID:      g.taggee.ID,
			TagID:               tag.ID,
			AuthorizingMemberID: &g.authorizer.ID,
			CreatedAt:           yesterday,
		}
		if err := f.members.CreateTagging(ctx, tagging); err != nil {
			t.Fatalf("seed tagging: %v", err)
		}
	}

	f.notifier.failFor = map[string]error{"bouncing@example.org": errors.New("mailbox full")}

	// One undeliverable recipient must not block the rest.
	if err := f.taggings(t).SendNewTaggingsReports(ctx); err != nil {
		t.Fatalf("SendNewTaggingsReports: %v", err)
	}
	if got := f.notifier.sentTo("reachable@example.org"); len(got) != 1 {
		t.Fatalf("reachable received %d reports, want 1", len(got))
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d reports total, want 1", len(f.notifier.sent))
	}
}
