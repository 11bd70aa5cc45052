// Package dataset handles transaction CSV ingestion and in-memory storage.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrBadCSV marks ingestion failures the caller should surface as
// "no data available" rather than a server fault.
var ErrBadCSV = errors.New("invalid transaction CSV")

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Parse reads a transaction CSV and returns its rows in file order.
// The header must contain every column in domain.CSVColumns (extra columns
// are ignored). Any malformed row fails the whole upload: a dataset is an
// all-or-nothing snapshot, partially loaded tables would silently
// under-flag.
func Parse(r io.Reader) ([]domain.Transaction, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrBadCSV, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range domain.CSVColumns {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrBadCSV, required)
		}
	}

	seen := make(map[string]struct{})
	var txs []domain.Transaction
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}

		tx, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadCSV, line, err)
		}

		if _, dup := seen[tx.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate transaction_id %q", ErrBadCSV, line, tx.ID)
		}
		seen[tx.ID] = struct{}{}

		txs = append(txs, tx)
	}

	return txs, nil
}

func parseRow(record []string, cols map[string]int) (domain.Transaction, error) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var tx domain.Transaction

	tx.ID = field("transaction_id")
	if tx.ID == "" {
		return tx, fmt.Errorf("empty transaction_id")
	}
	tx.CustomerID = field("customer_id")
	if tx.CustomerID == "" {
		return tx, fmt.Errorf("empty customer_id")
	}

	date, err := parseDate(field("date"))
	if err != nil {
		return tx, err
	}
	tx.Date = date

	amount, err := strconv.ParseFloat(field("amount"), 64)
	if err != nil {
		return tx, fmt.Errorf("invalid amount %q", field("amount"))
	}
	if amount < 0 {
		return tx, fmt.Errorf("negative amount %v", amount)
	}
	tx.Amount = amount

	tx.Type = field("transaction_type")
	tx.Country = field("country")
	tx.Description = field("description")

	velocity, err := strconv.ParseFloat(field("velocity"), 64)
	if err != nil {
		return tx, fmt.Errorf("invalid velocity %q", field("velocity"))
	}
	tx.Velocity = velocity

	balance, err := strconv.ParseFloat(field("account_balance"), 64)
	if err != nil {
		return tx, fmt.Errorf("invalid account_balance %q", field("account_balance"))
	}
	tx.AccountBalance = balance

	return tx, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}

// Summarize builds the dataset summary exposed by the API.
func Summarize(ds *domain.Dataset) domain.DatasetSummary {
	customers := make(map[string]struct{})
	var total float64
	for _, tx := range ds.Transactions {
		customers[tx.CustomerID] = struct{}{}
		total += tx.Amount
	}
	return domain.DatasetSummary{
		ID:          ds.ID,
		Name:        ds.Name,
		Rows:        len(ds.Transactions),
		Customers:   len(customers),
		TotalAmount: total,
		UploadedAt:  ds.UploadedAt,
	}
}

// SummarizeCustomer aggregates one customer's rows.
// Returns false if the customer has no transactions in the dataset.
func SummarizeCustomer(ds *domain.Dataset, customerID string) (domain.CustomerSummary, bool) {
	summary := domain.CustomerSummary{
		CustomerID:       customerID,
		TransactionTypes: make(map[string]int),
	}
	for _, tx := range ds.Transactions {
		if tx.CustomerID != customerID {
			continue
		}
		summary.TotalTransactions++
		summary.TotalAmount += tx.Amount
		summary.TransactionTypes[tx.Type]++
	}
	if summary.TotalTransactions == 0 {
		return domain.CustomerSummary{}, false
	}
	summary.AverageAmount = summary.TotalAmount / float64(summary.TotalTransactions)
	return summary, true
}
