package service

import (
	"context"
	"testing"
	"time"

	"volunteer-planner/internal/model"
)

func TestGenerateInstancesEveryThursday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: "open house", MaxClaimants: 1},
		StartDate:      day(2024, time.January, 1),
		Active:         true,
		Thursday:       true,
		Every:          true,
	}
	if err := f.templates.Create(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	// Frozen today is Wed 2024-05-01; the window is Apr 30 through May 28.
	created, err := f.generator.GenerateInstances(ctx, tpl, 27)
	if err != nil {
		t.Fatalf("GenerateInstances: %v", err)
	}
	if created != 4 {
		t.Fatalf("created = %d, want the 4 Thursdays May 2, 9, 16, 23", created)
	}

	instances, err := f.tasks.ListByTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("ListByTemplate: %v", err)
	}
	want := []time.Time{
		day(2024, time.May, 2), day(2024, time.May, 9),
		day(2024, time.May, 16), day(2024, time.May, 23),
	}
	if len(instances) != len(want) {
		t.Fatalf("instances = %d, want %d", len(instances), len(want))
	}
	for i, task := range instances {
		if task.ScheduledDate == nil || !task.ScheduledDate.Equal(want[i]) {
			t.Errorf("instance %d scheduled %v, want %v", i, task.ScheduledDate, want[i])
		}
		if !task.CreationDate.Equal(day(2024, time.May, 1)) {
			t.Errorf("instance %d creation date %v, want frozen today", i, task.CreationDate)
		}
	}
}

func TestGenerateInstancesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: "sweep up", MaxClaimants: 1},
		StartDate:      day(2024, time.January, 1),
		Active:         true,
		Monday:         true,
		First:          true,
		Third:          true,
	}
	if err := f.templates.Create(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	first, err := f.generator.GenerateInstances(ctx, tpl, 27)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	// First Monday (May 6) and third Monday (May 20) fall in the window.
	if first != 2 {
		t.Fatalf("first run created = %d, want 2", first)
	}

	second, err := f.generator.GenerateInstances(ctx, tpl, 27)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second != 0 {
		t.Fatalf("second run created = %d, want 0", second)
	}
}

func TestGenerateInstancesIntervalAnchorsOnLastScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	interval := 7
	flexible := false
	tpl := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: "empty compost", MaxClaimants: 1},
		StartDate:      day(2024, time.May, 1),
		Active:         true,
		RepeatInterval: &interval,
		FlexibleDates:  &flexible,
	}
	if err := f.templates.Create(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	created, err := f.generator.GenerateInstances(ctx, tpl, 27)
	if err != nil {
		t.Fatalf("GenerateInstances: %v", err)
	}
	if created != 4 {
		t.Fatalf("created = %d, want 4", created)
	}

	instances, err := f.tasks.ListByTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("ListByTemplate: %v", err)
	}
	// With no prior instances the anchor is start_date − 1 day, so the
	// first occurrence lands 7 days after Apr 30 and each later one 7
	// days after the previous.
	want := []time.Time{
		day(2024, time.May, 7), day(2024, time.May, 14),
		day(2024, time.May, 21), day(2024, time.May, 28),
	}
	for i, task := range instances {
		if task.ScheduledDate == nil || !task.ScheduledDate.Equal(want[i]) {
			t.Errorf("instance %d scheduled %v, want %v", i, task.ScheduledDate, want[i])
		}
	}
}

func TestGenerateInstancesCopiesDescriptorAndEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.member(t, "owner")
	eligible := f.member(t, "eligible")
	tag := &model.Tag{Name: "machinist", Meaning: "can run the mill"}
	if err := f.members.CreateTag(ctx, tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}

	tpl := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{
			OwnerID:      &owner.ID,
			ShortDesc:    "mill maintenance",
			Instructions: "oil the ways, check backlash",
			MaxClaimants: 2,
			WorkEstimate: 1.5,
			Priority:     model.PriorityHigh,
			StartTime:    "18:00",
		},
		StartDate:         day(2024, time.January, 1),
		Active:            true,
		Saturday:          true,
		Every:             true,
		EligibleClaimants: []model.Member{*eligible},
		EligibleTags:      []model.Tag{*tag},
	}
	if err := f.templates.Create(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	if _, err := f.generator.GenerateInstances(ctx, tpl, 6); err != nil {
		t.Fatalf("GenerateInstances: %v", err)
	}
	instances, err := f.tasks.ListByTemplate(ctx, tpl.ID)
	if err != nil || len(instances) == 0 {
		t.Fatalf("ListByTemplate = %d instances, %v", len(instances), err)
	}

	task, err := f.tasks.FindByID(ctx, instances[0].ID)
	if err != nil {
		t.Fatalf("reload instance: %v", err)
	}
	if task.ShortDesc != "mill maintenance" || task.MaxClaimants != 2 ||
		task.Priority != model.PriorityHigh || task.StartTime != "18:00" ||
		task.WorkEstimate != 1.5 {
		t.Fatalf("descriptor not copied: %+v", task.TaskDescriptor)
	}
	if len(task.EligibleClaimants) != 1 || task.EligibleClaimants[0].ID != eligible.ID {
		t.Fatalf("eligible claimants = %+v, want the template's", task.EligibleClaimants)
	}
	if len(task.EligibleTags) != 1 || task.EligibleTags[0].ID != tag.ID {
		t.Fatalf("eligible tags = %+v, want the template's", task.EligibleTags)
	}
}

func TestGenerateInstancesSkipsInactiveTemplates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tpl := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: "retired chore", MaxClaimants: 1},
		StartDate:      day(2024, time.January, 1),
		Active:         false,
		Friday:         true,
		Every:          true,
	}
	if err := f.templates.Create(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	// The inactive flag must survive the insert.
	reloaded, err := f.templates.FindByID(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("reload template: %v", err)
	}
	if reloaded.Active {
		t.Fatal("template created inactive came back active")
	}
	active, err := f.templates.ListActive(ctx)
	if err != nil || len(active) != 0 {
		t.Fatalf("ListActive = %d templates, %v; want 0, nil", len(active), err)
	}

	created, err := f.generator.GenerateInstances(ctx, reloaded, 27)
	if err != nil {
		t.Fatalf("GenerateInstances: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d for inactive template, want 0", created)
	}
}

func TestGenerateInstancesPreservesNagOptOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	quiet := f.member(t, "quiet_helper")
	tpl := &model.RecurringTaskTemplate{
		TaskDescriptor:    model.TaskDescriptor{ShortDesc: "quiet chore", MaxClaimants: 1, ShouldNag: false},
		StartDate:         day(2024, time.January, 1),
		Active:            true,
		Thursday:          true,
		Every:             true,
		EligibleClaimants: []model.Member{*quiet},
	}
	if err := f.templates.Create(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}

	if _, err := f.generator.GenerateInstances(ctx, tpl, 27); err != nil {
		t.Fatalf("GenerateInstances: %v", err)
	}
	instances, err := f.tasks.ListByTemplate(ctx, tpl.ID)
	if err != nil || len(instances) == 0 {
		t.Fatalf("ListByTemplate = %d instances, %v", len(instances), err)
	}
	for _, task := range instances {
		if task.ShouldNag {
			t.Fatalf("instance %q has ShouldNag=true despite the template's false", task.ShortDesc)
		}
	}

	// May 2 falls inside the nag window; the opt-out must keep the
	// eligible member's inbox quiet.
	if err := f.reminders(t).NagForWorkers(ctx); err != nil {
		t.Fatalf("NagForWorkers: %v", err)
	}
	if got := f.notifier.sentTo("quiet_helper@example.org"); len(got) != 0 {
		t.Fatalf("member nagged %d times about a should_nag=false template's task", len(got))
	}
}

func TestGenerateAllContinuesPastFailingTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	good := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: "good chore", MaxClaimants: 1},
		StartDate:      day(2024, time.January, 1),
		Active:         true,
		Tuesday:        true,
		Every:          true,
	}
	if err := f.templates.Create(ctx, good); err != nil {
		t.Fatalf("create good template: %v", err)
	}
	// Corrupt a template under the validator's nose: no recurrence mode.
	bad := &model.RecurringTaskTemplate{
		TaskDescriptor: model.TaskDescriptor{ShortDesc: "broken chore", MaxClaimants: 1},
		StartDate:      day(2024, time.January, 1),
		Active:         true,
		Wednesday:      true,
		Every:          true,
	}
	if err := f.templates.Create(ctx, bad); err != nil {
		t.Fatalf("create bad template: %v", err)
	}
	if err := f.db.Model(&model.RecurringTaskTemplate{}).Where("id = ?", bad.ID).
		Updates(map[string]any{"wednesday": false, "every": false}).Error; err != nil {
		t.Fatalf("corrupt template: %v", err)
	}

	total, err := f.generator.GenerateAll(ctx, 27)
	if err == nil {
		t.Fatal("expected an error from the corrupted template")
	}
	// Tuesdays Apr 30 and May 7, 14, 21, 28 fall in the window.
	if total != 5 {
		t.Fatalf("total = %d, want 5 from the good template", total)
	}
}
