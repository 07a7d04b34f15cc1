package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Frequency describes how often an income repeats.
type Frequency string

const (
	FrequencyNone       Frequency = "none"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencySemiannual Frequency = "semiannual"
	FrequencyAnnual     Frequency = "annual"
)

// Currency is the ISO 4217 code of an income amount.
type Currency string

const (
	CurrencyJOD Currency = "JOD"
	CurrencySAR Currency = "SAR"
	CurrencyTRY Currency = "TRY"
	CurrencyUSD Currency = "USD"
)

// Role controls visibility at the repository boundary. A superuser may read
// every user's records; everyone else only their own.
type Role string

const (
	RoleUser      Role = "user"
	RoleSuperuser Role = "superuser"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID             int64
		Username       string
		DisplayName    string
		Role           Role
		WhatsAppNumber string
		CreatedAt      time.Time
	}

	Category struct {
		ID      int64
		OwnerID int64
		Name    string
	}

	Income struct {
		ID             int64
		OwnerID        int64
		CategoryID     int64
		CategoryName   string // populated on reads, joined from the category
		Description    string
		Amount         Money
		Currency       Currency
		DueDate        Date
		Frequency      Frequency
		ExpirationDate Date // zero means no expiration
		Active         bool
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// ReminderLog records one sent reminder for one occurrence of an income.
	// At most one entry may exist per (IncomeID, Occurrence) pair.
	ReminderLog struct {
		IncomeID   int64
		Occurrence Date
		SentAt     time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNegativeAmount     = errors.New("amount must be non-negative")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 150 characters)")
	ErrInvalidFrequency   = errors.New("invalid recurrence frequency")
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidCategory    = errors.New("category name must be alphanumeric and not empty")
	ErrMissingCategory    = errors.New("category is required")
	ErrInvalidDueDate     = errors.New("invalid due date")
	ErrInvalidExpiration  = errors.New("invalid expiration date")
)

var categoryNameRe = regexp.MustCompile(`^[\w\s]+$`)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

func (d Date) Year() int  { return d.Time.Year() }
func (d Date) Month() int { return int(d.Time.Month()) }
func (d Date) Day() int   { return d.Time.Day() }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyNone, FrequencyMonthly, FrequencyQuarterly, FrequencySemiannual, FrequencyAnnual:
		return true
	}
	return false
}

// Recurring reports whether the frequency produces more than one occurrence.
func (f Frequency) Recurring() bool {
	return f.Valid() && f != FrequencyNone
}

func (c Currency) Valid() bool {
	switch c {
	case CurrencyJOD, CurrencySAR, CurrencyTRY, CurrencyUSD:
		return true
	}
	return false
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// DefaultExpiration returns the default expiration for a new income,
// three years from the given day.
func DefaultExpiration(today Date) Date {
	return Date{Time: today.AddDate(0, 0, 3*365)}
}

// Expired reports whether the income's expiration date is before the given day.
// An income with no expiration never expires.
func (i Income) Expired(today Date) bool {
	if i.ExpirationDate.IsZero() {
		return false
	}
	return i.ExpirationDate.Before(today.Time)
}

func (i Income) Validate() error {
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if !i.Currency.Valid() {
		return ErrInvalidCurrency
	}
	if strings.TrimSpace(i.Description) == "" {
		return ErrEmptyDescription
	}
	if len(i.Description) > 150 {
		return ErrDescriptionTooLong
	}
	if i.DueDate.IsZero() {
		return ErrInvalidDueDate
	}
	if !i.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if i.CategoryID == 0 {
		return ErrMissingCategory
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" || !categoryNameRe.MatchString(c.Name) {
		return ErrInvalidCategory
	}
	return nil
}
