package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"volunteer-planner/internal/clock"
	"volunteer-planner/internal/model"
	"volunteer-planner/internal/repository"
)

// GeneratorService materializes dated task instances from recurring
// templates. It is designed to run daily with an overlapping horizon:
// re-running it over the same window never produces duplicates.
type GeneratorService struct {
	templateRepo *repository.TemplateRepository
	taskRepo     *repository.TaskRepository
	clock        clock.Clock
	logger       *slog.Logger
}

func NewGeneratorService(templateRepo *repository.TemplateRepository, taskRepo *repository.TaskRepository, clk clock.Clock, logger *slog.Logger) *GeneratorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeneratorService{
		templateRepo: templateRepo,
		taskRepo:     taskRepo,
		clock:        clk,
		logger:       logger,
	}
}

// GenerateInstances walks candidate dates from the day before today
// through today+horizonDays inclusive and creates a task for every date
// the template matches that doesn't already have one. Returns how many
// instances were created. Inactive templates are a no-op.
func (s *GeneratorService) GenerateInstances(ctx context.Context, tpl *model.RecurringTaskTemplate, horizonDays int) (int, error) {
	if !tpl.Active {
		return 0, nil
	}
	if err := tpl.Validate(); err != nil {
		return 0, err
	}

	today := s.clock.Today()

	// Interval matching anchors on the greatest already-scheduled date;
	// with no instances yet the anchor is start_date − 1 day, so the first
	// occurrence lands repeat_interval days after that.
	lastScheduled := model.DateOf(tpl.StartDate).AddDate(0, 0, -1)
	if greatest, err := s.templateRepo.GreatestScheduledDate(ctx, tpl.ID); err != nil {
		return 0, err
	} else if greatest != nil {
		lastScheduled = model.DateOf(*greatest)
	}

	created := 0
	stop := today.AddDate(0, 0, horizonDays)
	for curr := today.AddDate(0, 0, -1); !curr.After(stop); curr = curr.AddDate(0, 0, 1) {
		if !tpl.MatchesDate(curr, lastScheduled) {
			continue
		}

		exists, err := s.taskRepo.ExistsForTemplateDate(ctx, tpl.ID, curr)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		task := s.instantiate(tpl, curr, today)
		err = s.taskRepo.Create(ctx, task)
		switch {
		case errors.Is(err, repository.ErrDuplicateInstance):
			// Another generator run beat us to this date.
			continue
		case err != nil:
			return created, err
		}

		created++
		if curr.After(lastScheduled) {
			lastScheduled = curr
		}
	}

	if created > 0 {
		s.logger.Info("generated task instances",
			slog.Uint64("template", uint64(tpl.ID)),
			slog.String("desc", tpl.ShortDesc),
			slog.Int("created", created),
		)
	}
	return created, nil
}

// instantiate copies the template's descriptor and eligibility lists into
// a fresh task for the given date. The copy happens exactly once; later
// template edits never touch existing instances.
func (s *GeneratorService) instantiate(tpl *model.RecurringTaskTemplate, scheduled, today time.Time) *model.Task {
	date := scheduled
	templateID := tpl.ID
	task := &model.Task{
		TaskDescriptor:          tpl.TaskDescriptor,
		CreationDate:            today,
		ScheduledDate:           &date,
		RecurringTaskTemplateID: &templateID,
	}
	task.EligibleClaimants = append(task.EligibleClaimants, tpl.EligibleClaimants...)
	task.EligibleTags = append(task.EligibleTags, tpl.EligibleTags...)
	task.Uninterested = append(task.Uninterested, tpl.Uninterested...)
	return task
}

// GenerateAll runs generation for every active template. A failing
// template is logged and skipped; the rest still generate.
func (s *GeneratorService) GenerateAll(ctx context.Context, horizonDays int) (int, error) {
	templates, err := s.templateRepo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	var errs []error
	for i := range templates {
		created, err := s.GenerateInstances(ctx, &templates[i], horizonDays)
		total += created
		if err != nil {
			s.logger.Error("generate instances",
				slog.Uint64("template", uint64(templates[i].ID)),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}
