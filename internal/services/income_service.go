// Package services holds the business logic: income lifecycle, reminder
// selection and dispatch, report aggregation.
package services

import (
	"context"
	"fmt"

	"github.com/ruktech/income-tracker/internal/amqp"
	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/storage"
)

// IncomeService validates and persists incomes and categories, and publishes
// change events for the export worker. The publisher may be nil; export then
// relies on the worker's pending sweep alone.
type IncomeService struct {
	store     IncomeStore
	publisher EventPublisher
	logger    *log.Logger
}

func NewIncomeService(store IncomeStore, publisher EventPublisher, logger *log.Logger) *IncomeService {
	return &IncomeService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentApp),
	}
}

// Create validates and stores a new income for the actor. A missing
// expiration date defaults to three years out; a missing currency to USD.
func (s *IncomeService) Create(ctx context.Context, actor storage.Actor, inc core.Income, today core.Date) (core.Income, error) {
	inc.OwnerID = actor.UserID
	inc.Active = true
	if inc.Currency == "" {
		inc.Currency = core.CurrencyUSD
	}
	if inc.Frequency == "" {
		inc.Frequency = core.FrequencyNone
	}
	if inc.ExpirationDate.IsZero() {
		inc.ExpirationDate = core.DefaultExpiration(today)
	}
	if err := inc.Validate(); err != nil {
		return core.Income{}, err
	}

	id, err := s.store.CreateIncome(ctx, actor, inc)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	s.publish(ctx, id, amqp.ActionCreated)

	return s.store.GetIncome(ctx, actor, id)
}

// Update validates and rewrites an income the actor owns.
func (s *IncomeService) Update(ctx context.Context, actor storage.Actor, inc core.Income) (core.Income, error) {
	if err := inc.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := s.store.UpdateIncome(ctx, actor, inc); err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.publish(ctx, inc.ID, amqp.ActionUpdated)
	return s.store.GetIncome(ctx, actor, inc.ID)
}

// Delete soft-deletes an income the actor owns.
func (s *IncomeService) Delete(ctx context.Context, actor storage.Actor, id int64) error {
	if err := s.store.SoftDeleteIncome(ctx, actor, id); err != nil {
		return err
	}
	s.publish(ctx, id, amqp.ActionDeleted)
	return nil
}

// Get returns one income scoped to the actor.
func (s *IncomeService) Get(ctx context.Context, actor storage.Actor, id int64) (core.Income, error) {
	return s.store.GetIncome(ctx, actor, id)
}

// List returns the actor's incomes with optional filters.
func (s *IncomeService) List(ctx context.Context, actor storage.Actor, f storage.IncomeFilter) ([]core.Income, error) {
	return s.store.ListIncomes(ctx, actor, f)
}

// CreateCategory validates and stores a category owned by the actor.
func (s *IncomeService) CreateCategory(ctx context.Context, actor storage.Actor, name string) (core.Category, error) {
	cat := core.Category{OwnerID: actor.UserID, Name: name}
	if err := cat.Validate(); err != nil {
		return core.Category{}, err
	}
	id, err := s.store.CreateCategory(ctx, actor, cat)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	cat.ID = id
	return cat, nil
}

// ListCategories returns the actor's categories.
func (s *IncomeService) ListCategories(ctx context.Context, actor storage.Actor) ([]core.Category, error) {
	return s.store.ListCategories(ctx, actor)
}

// DeleteCategory soft-deletes a category the actor owns.
func (s *IncomeService) DeleteCategory(ctx context.Context, actor storage.Actor, id int64) error {
	return s.store.SoftDeleteCategory(ctx, actor, id)
}

// publish is best-effort: a lost event only delays the export until the
// worker's pending sweep.
func (s *IncomeService) publish(ctx context.Context, id int64, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishIncomeEvent(ctx, id, action); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish income event",
			log.FieldIncomeID, id,
			"action", action,
			log.FieldError, err)
	}
}
