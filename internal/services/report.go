package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/ruktech/income-tracker/internal/core"
	"github.com/ruktech/income-tracker/internal/log"
	"github.com/ruktech/income-tracker/internal/storage"
)

// GroupBy selects the report grouping key.
type GroupBy string

const (
	GroupByYear     GroupBy = "year"
	GroupByMonth    GroupBy = "month"
	GroupByCategory GroupBy = "category"
)

func (g GroupBy) Valid() bool {
	switch g {
	case GroupByYear, GroupByMonth, GroupByCategory:
		return true
	}
	return false
}

// ReportRow is one aggregated bucket.
type ReportRow struct {
	Key   string
	Total core.Money
	Count int
}

// ReportService aggregates incomes by year, month or category. Sums are
// computed in-process: amounts are encrypted at rest, so the database cannot
// do it. Only live, active, non-expired records owned by the actor (all
// records for a superuser) contribute.
type ReportService struct {
	store  ReportStore
	logger *log.Logger
}

func NewReportService(store ReportStore, logger *log.Logger) *ReportService {
	return &ReportService{
		store:  store,
		logger: logger.WithComponent(log.ComponentReport),
	}
}

// Summary returns totals per grouping key, sorted by key. The result is
// deterministic for a given data snapshot.
func (s *ReportService) Summary(ctx context.Context, actor storage.Actor, group GroupBy, f storage.IncomeFilter, today core.Date) ([]ReportRow, error) {
	if !group.Valid() {
		return nil, fmt.Errorf("invalid grouping %q", group)
	}

	incomes, err := s.store.ListIncomes(ctx, actor, f)
	if err != nil {
		return nil, fmt.Errorf("list incomes for report: %w", err)
	}

	buckets := make(map[string]*ReportRow)
	for _, inc := range incomes {
		if !inc.Active || inc.Expired(today) {
			continue
		}
		key := groupKey(inc, group)
		row, ok := buckets[key]
		if !ok {
			row = &ReportRow{Key: key}
			buckets[key] = row
		}
		row.Total = row.Total.Add(inc.Amount)
		row.Count++
	}

	out := make([]ReportRow, 0, len(buckets))
	for _, row := range buckets {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	s.logger.InfoContext(ctx, "Report computed",
		"group", string(group),
		"rows", len(out),
		log.FieldUserID, actor.UserID)
	return out, nil
}

func groupKey(inc core.Income, group GroupBy) string {
	switch group {
	case GroupByYear:
		return fmt.Sprintf("%04d", inc.DueDate.Year())
	case GroupByMonth:
		return fmt.Sprintf("%04d-%02d", inc.DueDate.Year(), inc.DueDate.Month())
	default:
		return inc.CategoryName
	}
}
