package services

import (
	"context"
	"testing"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/storage"
)

type fakeReportStore struct {
	incomes []core.Income
}

func (f *fakeReportStore) ListIncomes(_ context.Context, actor storage.Actor, _ storage.IncomeFilter) ([]core.Income, error) {
	if actor.Role == core.RoleSuperuser {
		return f.incomes, nil
	}
	var out []core.Income
	for _, inc := range f.incomes {
		if inc.OwnerID == actor.UserID {
			out = append(out, inc)
		}
	}
	return out, nil
}

func reportIncome(owner int64, category string, cents int64, due core.Date, mutate func(*core.Income)) core.Income {
	inc := core.Income{
		OwnerID:      owner,
		CategoryID:   1,
		CategoryName: category,
		Description:  "x",
		Amount:       core.Money{Cents: cents},
		Currency:     core.CurrencyUSD,
		DueDate:      due,
		Frequency:    core.FrequencyNone,
		Active:       true,
	}
	if mutate != nil {
		mutate(&inc)
	}
	return inc
}

func TestReportSummary_Groupings(t *testing.T) {
	today := core.NewDate(2024, 7, 1)
	store := &fakeReportStore{incomes: []core.Income{
		reportIncome(1, "Salary", 100000, core.NewDate(2024, 1, 10), nil),
		reportIncome(1, "Salary", 100000, core.NewDate(2024, 2, 10), nil),
		reportIncome(1, "Rent", 50000, core.NewDate(2024, 2, 20), nil),
		reportIncome(1, "Rent", 50000, core.NewDate(2023, 12, 20), nil),
	}}
	svc := NewReportService(store, testLogger())
	actor := storage.Actor{UserID: 1, Role: core.RoleUser}

	byYear, err := svc.Summary(context.Background(), actor, GroupByYear, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("Summary by year: %v", err)
	}
	wantYear := []ReportRow{
		{Key: "2023", Total: core.Money{Cents: 50000}, Count: 1},
		{Key: "2024", Total: core.Money{Cents: 250000}, Count: 3},
	}
	assertRows(t, byYear, wantYear)

	byMonth, err := svc.Summary(context.Background(), actor, GroupByMonth, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("Summary by month: %v", err)
	}
	wantMonth := []ReportRow{
		{Key: "2023-12", Total: core.Money{Cents: 50000}, Count: 1},
		{Key: "2024-01", Total: core.Money{Cents: 100000}, Count: 1},
		{Key: "2024-02", Total: core.Money{Cents: 150000}, Count: 2},
	}
	assertRows(t, byMonth, wantMonth)

	byCategory, err := svc.Summary(context.Background(), actor, GroupByCategory, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("Summary by category: %v", err)
	}
	wantCategory := []ReportRow{
		{Key: "Rent", Total: core.Money{Cents: 100000}, Count: 2},
		{Key: "Salary", Total: core.Money{Cents: 200000}, Count: 2},
	}
	assertRows(t, byCategory, wantCategory)
}

// The cross-check invariant: per-category totals and per-month totals must
// add up to the same grand total for the same user and range.
func TestReportSummary_CrossCheck(t *testing.T) {
	today := core.NewDate(2024, 7, 1)
	store := &fakeReportStore{incomes: []core.Income{
		reportIncome(1, "Salary", 123456, core.NewDate(2024, 1, 5), nil),
		reportIncome(1, "Rent", 78900, core.NewDate(2024, 1, 20), nil),
		reportIncome(1, "Consulting", 250000, core.NewDate(2024, 3, 1), nil),
		reportIncome(1, "Salary", 123456, core.NewDate(2024, 4, 5), nil),
	}}
	svc := NewReportService(store, testLogger())
	actor := storage.Actor{UserID: 1, Role: core.RoleUser}

	byCategory, err := svc.Summary(context.Background(), actor, GroupByCategory, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("by category: %v", err)
	}
	byMonth, err := svc.Summary(context.Background(), actor, GroupByMonth, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("by month: %v", err)
	}

	var catTotal, monthTotal int64
	for _, row := range byCategory {
		catTotal += row.Total.Cents
	}
	for _, row := range byMonth {
		monthTotal += row.Total.Cents
	}
	if catTotal != monthTotal {
		t.Errorf("category total %d != month total %d", catTotal, monthTotal)
	}
}

func TestReportSummary_ExcludesInactiveAndExpired(t *testing.T) {
	today := core.NewDate(2024, 7, 1)
	store := &fakeReportStore{incomes: []core.Income{
		reportIncome(1, "Salary", 100000, core.NewDate(2024, 1, 10), nil),
		reportIncome(1, "Salary", 100000, core.NewDate(2024, 1, 10), func(i *core.Income) {
			i.Active = false
		}),
		reportIncome(1, "Salary", 100000, core.NewDate(2024, 1, 10), func(i *core.Income) {
			i.ExpirationDate = core.NewDate(2024, 6, 1)
		}),
	}}
	svc := NewReportService(store, testLogger())
	actor := storage.Actor{UserID: 1, Role: core.RoleUser}

	rows, err := svc.Summary(context.Background(), actor, GroupByCategory, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(rows) != 1 || rows[0].Total.Cents != 100000 || rows[0].Count != 1 {
		t.Errorf("rows = %+v; inactive and expired incomes must not contribute", rows)
	}
}

func TestReportSummary_UserScoping(t *testing.T) {
	today := core.NewDate(2024, 7, 1)
	store := &fakeReportStore{incomes: []core.Income{
		reportIncome(1, "Salary", 100000, core.NewDate(2024, 1, 10), nil),
		reportIncome(2, "Salary", 900000, core.NewDate(2024, 1, 10), nil),
	}}
	svc := NewReportService(store, testLogger())

	rows, err := svc.Summary(context.Background(), storage.Actor{UserID: 1, Role: core.RoleUser}, GroupByCategory, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(rows) != 1 || rows[0].Total.Cents != 100000 {
		t.Errorf("user 1 rows = %+v; must only see own incomes", rows)
	}

	rows, err = svc.Summary(context.Background(), storage.Actor{UserID: 1, Role: core.RoleSuperuser}, GroupByCategory, storage.IncomeFilter{}, today)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(rows) != 1 || rows[0].Total.Cents != 1000000 {
		t.Errorf("superuser rows = %+v; must see all incomes", rows)
	}
}

func TestReportSummary_InvalidGrouping(t *testing.T) {
	svc := NewReportService(&fakeReportStore{}, testLogger())
	_, err := svc.Summary(context.Background(), storage.Actor{UserID: 1, Role: core.RoleUser}, "weekday", storage.IncomeFilter{}, core.NewDate(2024, 1, 1))
	if err == nil {
		t.Error("invalid grouping should be rejected")
	}
}

func assertRows(t *testing.T, got, want []ReportRow) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
