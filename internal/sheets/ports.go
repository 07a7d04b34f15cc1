package sheets

import "context"

// IncomeRow is one exported income, already decrypted and flattened for the
// spreadsheet.
type IncomeRow struct {
	ID          int64
	Owner       string
	DueDate     string
	Category    string
	Description string
	Amount      string
	Currency    string
	Frequency   string
	Active      bool
}

// IncomeWriter appends one income row to the export target and returns a
// reference to the written row.
type IncomeWriter interface {
	AppendIncome(ctx context.Context, row IncomeRow) (rowRef string, err error)
}
