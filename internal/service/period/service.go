package period

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clubworks/portal-api/internal/model"
	"github.com/clubworks/portal-api/internal/repository"
	"github.com/clubworks/portal-api/pkg/errors"
)

// Default reminder offsets, in days, when a create request omits the
// schedule.
const (
	DefaultFirstReminderDays  = 7
	DefaultSecondReminderDays = 3
	DefaultFinalReminderDays  = 1
)

type Service struct {
	repo        repository.PeriodRepository
	paymentRepo repository.PaymentRepository
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewService(repo repository.PeriodRepository, paymentRepo repository.PaymentRepository, logger *zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		paymentRepo: paymentRepo,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreatePeriodRequest, createdBy uuid.UUID) (*model.PeriodView, error) {
	now := s.now()

	p := &model.PaymentPeriod{
		ID:                 uuid.New(),
		Title:              req.Title,
		Type:               req.Type,
		Category:           req.Category,
		Amount:             req.Amount,
		Currency:           req.Currency,
		StartDate:          req.StartDate,
		DueDate:            req.DueDate,
		FinalDate:          req.FinalDate,
		Description:        req.Description,
		Applicability:      req.Applicability,
		SpecificMemberIDs:  req.SpecificMemberIDs,
		RemindersEnabled:   true,
		FirstReminderDays:  DefaultFirstReminderDays,
		SecondReminderDays: DefaultSecondReminderDays,
		FinalReminderDays:  DefaultFinalReminderDays,
		LateFeesEnabled:    req.LateFeesEnabled,
		LateFeeKind:        req.LateFeeKind,
		LateFeeAmount:      req.LateFeeAmount,
		LateFeeGraceDays:   req.LateFeeGraceDays,
		CreatedBy:          createdBy,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.Currency == "" {
		p.Currency = "INR"
	}
	if p.Applicability == "" {
		p.Applicability = model.ApplicabilityActive
	}
	if p.LateFeeKind == "" {
		p.LateFeeKind = model.LateFeeFixed
	}
	if req.RemindersEnabled != nil {
		p.RemindersEnabled = *req.RemindersEnabled
	}
	if req.FirstReminderDays != nil {
		p.FirstReminderDays = *req.FirstReminderDays
	}
	if req.SecondReminderDays != nil {
		p.SecondReminderDays = *req.SecondReminderDays
	}
	if req.FinalReminderDays != nil {
		p.FinalReminderDays = *req.FinalReminderDays
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.NewTransient("failed to create payment period", err)
	}

	view := model.NewPeriodView(*p, now)
	return &view, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.PeriodView, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := model.NewPeriodView(*p, s.now())
	return &view, nil
}

func (s *Service) List(ctx context.Context, filters *model.PeriodFilters) ([]model.PeriodView, model.Pagination, error) {
	filters.Normalize(10, 100)
	now := s.now()

	periods, total, err := s.repo.List(ctx, filters, now)
	if err != nil {
		return nil, filters.Pagination, fmt.Errorf("failed to list payment periods: %w", err)
	}
	filters.SetTotal(total)

	views := make([]model.PeriodView, 0, len(periods))
	for _, p := range periods {
		views = append(views, model.NewPeriodView(*p, now))
	}
	return views, filters.Pagination, nil
}

// Summary returns the dashboard split of open periods: active (which
// includes overdue) and upcoming.
type Summary struct {
	Active   []model.PeriodView `json:"active"`
	Upcoming []model.PeriodView `json:"upcoming"`
}

func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	now := s.now()
	periods, err := s.repo.ListOpen(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load open periods: %w", err)
	}

	summary := &Summary{
		Active:   []model.PeriodView{},
		Upcoming: []model.PeriodView{},
	}
	for _, p := range periods {
		view := model.NewPeriodView(*p, now)
		if view.Status == model.PeriodStatusUpcoming {
			summary.Upcoming = append(summary.Upcoming, view)
		} else {
			summary.Active = append(summary.Active, view)
		}
	}
	return summary, nil
}

// Update mutates a period. Only upcoming periods are editable: once a
// period is active its terms are frozen for the members it binds.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePeriodRequest, updatedBy uuid.UUID) (*model.PeriodView, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if status := p.Status(now); status != model.PeriodStatusUpcoming {
		return nil, errors.NewConflict(fmt.Sprintf("cannot edit a %s payment period", status))
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Amount != nil {
		p.Amount = *req.Amount
	}
	if req.StartDate != nil {
		p.StartDate = *req.StartDate
	}
	if req.DueDate != nil {
		p.DueDate = *req.DueDate
	}
	if req.FinalDate != nil {
		p.FinalDate = *req.FinalDate
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Applicability != nil {
		p.Applicability = *req.Applicability
	}
	if req.SpecificMemberIDs != nil {
		p.SpecificMemberIDs = req.SpecificMemberIDs
	}
	if req.RemindersEnabled != nil {
		p.RemindersEnabled = *req.RemindersEnabled
	}
	if req.FirstReminderDays != nil {
		p.FirstReminderDays = *req.FirstReminderDays
	}
	if req.SecondReminderDays != nil {
		p.SecondReminderDays = *req.SecondReminderDays
	}
	if req.FinalReminderDays != nil {
		p.FinalReminderDays = *req.FinalReminderDays
	}
	if req.LateFeesEnabled != nil {
		p.LateFeesEnabled = *req.LateFeesEnabled
	}
	if req.LateFeeKind != nil {
		p.LateFeeKind = *req.LateFeeKind
	}
	if req.LateFeeAmount != nil {
		p.LateFeeAmount = *req.LateFeeAmount
	}
	if req.LateFeeGraceDays != nil {
		p.LateFeeGraceDays = *req.LateFeeGraceDays
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.UpdatedBy = &updatedBy
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	view := model.NewPeriodView(*p, now)
	return &view, nil
}

// Delete removes a period. Rejected once materialized payments have
// progressed: the period is the payments' provenance record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if p.PaymentsCreated {
		count, err := s.paymentRepo.CountNonPending(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to check period payments: %w", err)
		}
		if count > 0 {
			return errors.NewConflict("cannot delete a payment period with completed or failed payments")
		}
	}

	return s.repo.Delete(ctx, id)
}
