package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/log"
)

// Reminder is one selected send: an income, its owner's contact details and
// the occurrence date the reminder is for.
type Reminder struct {
	Income     core.Income
	OwnerName  string
	ToNumber   string
	Occurrence core.Date
}

// ReminderStats summarizes one batch run.
type ReminderStats struct {
	Candidates int
	Selected   int
	Sent       int
	Failed     int
}

// ReminderSelector picks the incomes that are due exactly lookahead days
// from today. It is read-only; the dispatcher writes the log after sending.
type ReminderSelector struct {
	store         ReminderStore
	lookaheadDays int
	logger        *log.Logger
}

func NewReminderSelector(store ReminderStore, lookaheadDays int, logger *log.Logger) *ReminderSelector {
	if lookaheadDays < 1 {
		lookaheadDays = 1
	}
	return &ReminderSelector{
		store:         store,
		lookaheadDays: lookaheadDays,
		logger:        logger.WithComponent(log.ComponentReminder),
	}
}

// SelectDue returns the reminders to send for the given day: active,
// non-expired, non-deleted incomes with an occurrence on today+lookahead,
// whose owner has a WhatsApp number, minus occurrences already in the
// reminder log.
func (s *ReminderSelector) SelectDue(ctx context.Context, today core.Date) ([]Reminder, int, error) {
	target := core.Date{Time: today.AddDate(0, 0, s.lookaheadDays)}

	candidates, err := s.store.ListDueCandidates(ctx, today)
	if err != nil {
		return nil, 0, fmt.Errorf("list due candidates: %w", err)
	}

	var out []Reminder
	for _, cand := range candidates {
		inc := cand.Income
		if !core.OccursOn(inc.DueDate, inc.Frequency, target) {
			continue
		}
		if cand.WhatsAppNumber == "" {
			s.logger.WarnContext(ctx, "Skipping income: owner has no WhatsApp number",
				log.FieldIncomeID, inc.ID,
				log.FieldUserID, inc.OwnerID)
			continue
		}
		already, err := s.store.AlreadyReminded(ctx, inc.ID, target)
		if err != nil {
			return nil, 0, fmt.Errorf("check reminder log for income %d: %w", inc.ID, err)
		}
		if already {
			continue
		}
		out = append(out, Reminder{
			Income:     inc,
			OwnerName:  cand.OwnerName,
			ToNumber:   cand.WhatsAppNumber,
			Occurrence: target,
		})
	}
	return out, len(candidates), nil
}

// ReminderDispatcher sends one message per reminder and records the log entry
// after a successful send. One gateway failure never aborts the batch.
type ReminderDispatcher struct {
	store  ReminderStore
	sender MessageSender
	logger *log.Logger
}

func NewReminderDispatcher(store ReminderStore, sender MessageSender, logger *log.Logger) *ReminderDispatcher {
	return &ReminderDispatcher{
		store:  store,
		sender: sender,
		logger: logger.WithComponent(log.ComponentReminder),
	}
}

// Dispatch processes the batch sequentially. Returns how many sends succeeded
// and how many failed; failures are logged per record and skipped.
func (d *ReminderDispatcher) Dispatch(ctx context.Context, reminders []Reminder, now time.Time) (sent, failed int) {
	for _, rem := range reminders {
		vars := templateVariables(rem)

		if err := d.sender.Send(ctx, rem.ToNumber, vars); err != nil {
			failed++
			d.logger.ErrorContext(ctx, "Reminder send failed",
				log.FieldIncomeID, rem.Income.ID,
				log.FieldOccurrence, rem.Occurrence.String(),
				log.FieldError, err)
			continue
		}

		if err := d.store.RecordReminder(ctx, rem.Income.ID, rem.Occurrence, now); err != nil {
			// The message went out; a missing log entry risks a duplicate on
			// the next run, so it is worth a loud error.
			d.logger.ErrorContext(ctx, "Reminder sent but not recorded",
				log.FieldIncomeID, rem.Income.ID,
				log.FieldOccurrence, rem.Occurrence.String(),
				log.FieldError, err)
		}
		sent++
		d.logger.InfoContext(ctx, "Reminder sent",
			log.FieldIncomeID, rem.Income.ID,
			log.FieldOccurrence, rem.Occurrence.String(),
			log.FieldAmount, rem.Income.Amount.Display(),
			log.FieldCurrency, string(rem.Income.Currency))
	}
	return sent, failed
}

// templateVariables fills the WhatsApp content template: recipient name,
// amount, currency, category, description.
func templateVariables(rem Reminder) map[string]string {
	category := rem.Income.CategoryName
	if category == "" {
		category = "General"
	}
	description := rem.Income.Description
	if description == "" {
		description = "No description"
	}
	return map[string]string{
		"1": rem.OwnerName,
		"2": rem.Income.Amount.Display(),
		"3": string(rem.Income.Currency),
		"4": category,
		"5": description,
	}
}

// ReminderJob wires the selector and dispatcher into the single pass the
// scheduled command runs.
type ReminderJob struct {
	selector   *ReminderSelector
	dispatcher *ReminderDispatcher
	logger     *log.Logger
}

func NewReminderJob(store ReminderStore, sender MessageSender, lookaheadDays int, logger *log.Logger) *ReminderJob {
	return &ReminderJob{
		selector:   NewReminderSelector(store, lookaheadDays, logger),
		dispatcher: NewReminderDispatcher(store, sender, logger),
		logger:     logger.WithComponent(log.ComponentReminder),
	}
}

// Run performs one sequential pass. Per-record gateway failures are counted,
// not returned; only selection errors (storage problems affecting the whole
// run) surface as an error.
func (j *ReminderJob) Run(ctx context.Context, now time.Time) (ReminderStats, error) {
	today := core.DateOf(now)

	reminders, candidates, err := j.selector.SelectDue(ctx, today)
	if err != nil {
		return ReminderStats{}, err
	}

	j.logger.InfoContext(ctx, "Reminder selection complete",
		"date", today.String(),
		"candidates", candidates,
		"selected", len(reminders))

	sent, failed := j.dispatcher.Dispatch(ctx, reminders, now)

	stats := ReminderStats{
		Candidates: candidates,
		Selected:   len(reminders),
		Sent:       sent,
		Failed:     failed,
	}
	j.logger.InfoContext(ctx, "Reminder run complete",
		"selected", stats.Selected,
		"sent", stats.Sent,
		"failed", stats.Failed)
	return stats, nil
}
