package dataset

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const validCSV = `transaction_id,customer_id,date,amount,transaction_type,country,description,velocity,account_balance
t1,alice,2025-03-01,9500.00,deposit,Utopia,branch deposit,2.0,15000.00
t2,bob,2025-03-01 14:30:00,120.50,payment,Freedonia,grocery store,1.0,800.00
t3,alice,2025-03-02T09:00:00Z,16000.00,transfer,Narnia,offshore consulting,3.5,31000.00
`

func TestParseValidCSV(t *testing.T) {
	txs, err := Parse(strings.NewReader(validCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}

	first := txs[0]
	if first.ID != "t1" || first.CustomerID != "alice" {
		t.Errorf("unexpected first row: %+v", first)
	}
	if first.Amount != 9500.00 || first.Type != "deposit" {
		t.Errorf("unexpected amount/type: %+v", first)
	}
	if first.Date != time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected date: %v", first.Date)
	}
	if txs[2].Date != time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC) {
		t.Errorf("RFC3339 date not parsed: %v", txs[2].Date)
	}
}

func TestParseExtraColumnsIgnored(t *testing.T) {
	csvData := `transaction_id,customer_id,date,amount,transaction_type,country,description,velocity,account_balance,branch_code
t1,alice,2025-03-01,10.00,payment,Utopia,coffee,1.0,100.00,BR-7
`
	txs, err := Parse(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
}

func TestParseMissingColumn(t *testing.T) {
	csvData := "transaction_id,customer_id,date,amount\nt1,alice,2025-03-01,10.00\n"
	_, err := Parse(strings.NewReader(csvData))
	if !errors.Is(err, ErrBadCSV) {
		t.Fatalf("expected ErrBadCSV for missing columns, got %v", err)
	}
}

func TestParseBadRowFailsWholeUpload(t *testing.T) {
	csvData := validCSV + "t4,carol,not-a-date,50.00,payment,Utopia,lunch,1.0,100.00\n"
	_, err := Parse(strings.NewReader(csvData))
	if !errors.Is(err, ErrBadCSV) {
		t.Fatalf("expected ErrBadCSV for malformed row, got %v", err)
	}
}

func TestParseDuplicateTransactionID(t *testing.T) {
	csvData := validCSV + "t1,carol,2025-03-03,50.00,payment,Utopia,lunch,1.0,100.00\n"
	_, err := Parse(strings.NewReader(csvData))
	if !errors.Is(err, ErrBadCSV) {
		t.Fatalf("expected ErrBadCSV for duplicate transaction_id, got %v", err)
	}
}

func TestParseNegativeAmount(t *testing.T) {
	csvData := `transaction_id,customer_id,date,amount,transaction_type,country,description,velocity,account_balance
t1,alice,2025-03-01,-5.00,payment,Utopia,refund,1.0,100.00
`
	_, err := Parse(strings.NewReader(csvData))
	if !errors.Is(err, ErrBadCSV) {
		t.Fatalf("expected ErrBadCSV for negative amount, got %v", err)
	}
}

func TestParseEmptyRequiredField(t *testing.T) {
	csvData := `transaction_id,customer_id,date,amount,transaction_type,country,description,velocity,account_balance
t1,,2025-03-01,5.00,payment,Utopia,coffee,1.0,100.00
`
	_, err := Parse(strings.NewReader(csvData))
	if !errors.Is(err, ErrBadCSV) {
		t.Fatalf("expected ErrBadCSV for empty customer_id, got %v", err)
	}
}

func testDataset(t *testing.T) *domain.Dataset {
	t.Helper()
	txs, err := Parse(strings.NewReader(validCSV))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return &domain.Dataset{ID: "ds-1", Name: "march", Transactions: txs, UploadedAt: time.Now()}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(testDataset(t))

	if summary.Rows != 3 {
		t.Errorf("expected 3 rows, got %d", summary.Rows)
	}
	if summary.Customers != 2 {
		t.Errorf("expected 2 customers, got %d", summary.Customers)
	}
	if summary.TotalAmount != 9500.00+120.50+16000.00 {
		t.Errorf("unexpected total: %v", summary.TotalAmount)
	}
}

func TestSummarizeCustomer(t *testing.T) {
	ds := testDataset(t)

	summary, ok := SummarizeCustomer(ds, "alice")
	if !ok {
		t.Fatal("expected alice to be present")
	}
	if summary.TotalTransactions != 2 {
		t.Errorf("expected 2 transactions, got %d", summary.TotalTransactions)
	}
	if summary.TransactionTypes["deposit"] != 1 || summary.TransactionTypes["transfer"] != 1 {
		t.Errorf("unexpected type breakdown: %v", summary.TransactionTypes)
	}
	if summary.AverageAmount != (9500.00+16000.00)/2 {
		t.Errorf("unexpected average: %v", summary.AverageAmount)
	}

	if _, ok := SummarizeCustomer(ds, "mallory"); ok {
		t.Error("expected miss for unknown customer")
	}
}
