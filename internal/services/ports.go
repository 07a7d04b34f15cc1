package services

import (
	"context"
	"time"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/storage"
)

// Ports for the collaborators the services orchestrate. storage.SQLiteRepository
// satisfies the store interfaces; tests plug in fakes.
type (
	IncomeStore interface {
		CreateIncome(ctx context.Context, actor storage.Actor, inc core.Income) (int64, error)
		GetIncome(ctx context.Context, actor storage.Actor, id int64) (core.Income, error)
		UpdateIncome(ctx context.Context, actor storage.Actor, inc core.Income) error
		SoftDeleteIncome(ctx context.Context, actor storage.Actor, id int64) error
		ListIncomes(ctx context.Context, actor storage.Actor, f storage.IncomeFilter) ([]core.Income, error)
		CreateCategory(ctx context.Context, actor storage.Actor, c core.Category) (int64, error)
		ListCategories(ctx context.Context, actor storage.Actor) ([]core.Category, error)
		SoftDeleteCategory(ctx context.Context, actor storage.Actor, id int64) error
	}

	ReminderStore interface {
		ListDueCandidates(ctx context.Context, asOf core.Date) ([]storage.DueCandidate, error)
		AlreadyReminded(ctx context.Context, incomeID int64, occurrence core.Date) (bool, error)
		RecordReminder(ctx context.Context, incomeID int64, occurrence core.Date, sentAt time.Time) error
	}

	ReportStore interface {
		ListIncomes(ctx context.Context, actor storage.Actor, f storage.IncomeFilter) ([]core.Income, error)
	}

	// MessageSender is the external messaging gateway: one templated send per
	// recipient.
	MessageSender interface {
		Send(ctx context.Context, toNumber string, variables map[string]string) error
	}

	// EventPublisher announces income changes to the export pipeline.
	EventPublisher interface {
		PublishIncomeEvent(ctx context.Context, id int64, action string) error
	}
)
