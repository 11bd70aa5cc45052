package violations

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rules"
)

func TestAddDeduplicates(t *testing.T) {
	m := NewMap()
	m.Add("alice", "high_value_cash_deposits")
	m.Add("alice", "high_value_cash_deposits")
	m.Add("alice", "structured_transactions")

	if got := m.Rules("alice"); len(got) != 2 {
		t.Fatalf("expected 2 distinct rules, got %v", got)
	}
}

func TestNoEmptyEntries(t *testing.T) {
	results := []domain.RuleResult{
		{Rule: "high_value_cash_deposits", Transactions: nil},
		{Rule: "structured_transactions", Transactions: []domain.Transaction{{ID: "t1", CustomerID: "bob"}}},
	}

	m := Aggregate(results)
	if m.Len() != 1 {
		t.Fatalf("expected only customers with violations, got %d entries", m.Len())
	}
	if m.Has("") {
		t.Error("empty customer ID must not appear")
	}
	if !m.Has("bob") {
		t.Error("bob should have a violation entry")
	}
}

func TestAggregateFirstEncounterOrder(t *testing.T) {
	results := []domain.RuleResult{
		{Rule: "r1", Transactions: []domain.Transaction{
			{ID: "t1", CustomerID: "carol"},
			{ID: "t2", CustomerID: "alice"},
		}},
		{Rule: "r2", Transactions: []domain.Transaction{
			{ID: "t3", CustomerID: "bob"},
			{ID: "t4", CustomerID: "carol"},
		}},
	}

	m := Aggregate(results)
	got := m.Customers()
	want := []string{"carol", "alice", "bob"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected first-encounter order %v, got %v", want, got)
		}
	}
}

func TestFilterMinDefault(t *testing.T) {
	m := NewMap()
	m.Add("single", "r1")
	m.Add("double", "r1")
	m.Add("double", "r2")
	m.Add("triple", "r1")
	m.Add("triple", "r2")
	m.Add("triple", "r3")

	filtered := m.FilterMin(DefaultMinViolations)
	if filtered.Len() != 2 {
		t.Fatalf("expected 2 customers at min %d violations, got %d", DefaultMinViolations, filtered.Len())
	}
	if filtered.Has("single") {
		t.Error("single-violation customer must be filtered out")
	}

	got := filtered.Customers()
	if got[0] != "double" || got[1] != "triple" {
		t.Errorf("FilterMin must preserve encounter order, got %v", got)
	}
}

func TestFilterMinOne(t *testing.T) {
	m := NewMap()
	m.Add("single", "r1")

	if m.FilterMin(1).Len() != 1 {
		t.Fatal("threshold 1 should keep single-violation customers")
	}
}

func TestPagination(t *testing.T) {
	m := NewMap()
	for i := 0; i < 23; i++ {
		id := fmt.Sprintf("cust-%02d", i)
		m.Add(id, "r1")
		m.Add(id, "r2")
	}

	if got := m.PageCount(10); got != 3 {
		t.Fatalf("expected 3 pages for 23 customers at size 10, got %d", got)
	}

	page1 := m.Page(1, 10)
	page3 := m.Page(3, 10)
	if len(page1) != 10 {
		t.Errorf("expected full first page, got %d", len(page1))
	}
	if len(page3) != 3 {
		t.Errorf("expected 3 entries on last page, got %d", len(page3))
	}
	if page1[0].CustomerID != "cust-00" || page3[0].CustomerID != "cust-20" {
		t.Errorf("pages not stable: page1[0]=%s page3[0]=%s", page1[0].CustomerID, page3[0].CustomerID)
	}

	if got := m.Page(4, 10); len(got) != 0 {
		t.Errorf("expected empty page past the end, got %d entries", len(got))
	}
	if got := m.Page(0, 10); len(got) != 0 {
		t.Errorf("expected empty result for page 0, got %d entries", len(got))
	}
}

func TestPageStableAcrossCalls(t *testing.T) {
	m := NewMap()
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("c%d", i)
		m.Add(id, "r1")
	}

	first := m.Page(2, 10)
	for i := 0; i < 5; i++ {
		again := m.Page(2, 10)
		for j := range first {
			if again[j].CustomerID != first[j].CustomerID {
				t.Fatal("page contents changed between identical calls")
			}
		}
	}
}

type staticRef struct {
	ref *domain.ReferenceData
}

func (s staticRef) Current() *domain.ReferenceData { return s.ref }

func TestDepositAndWirePipeline(t *testing.T) {
	eval := rules.NewEvaluator(rules.NewRegistry(), staticRef{
		domain.NewReferenceData([]string{"HighRiskLand"}, nil),
	})

	txs := []domain.Transaction{
		{ID: "1", CustomerID: "A", Type: "deposit", Amount: 9500, Country: "X", Description: "cash", Velocity: 1, AccountBalance: 1000},
		{ID: "2", CustomerID: "A", Type: "transfer", Amount: 20000, Country: "HighRiskLand", Velocity: 1, AccountBalance: 5000},
	}

	results := eval.Evaluate(txs, nil, "")
	tables := domain.ResultTables(results)

	if hits := tables[domain.RuleHighValueCashDeposits]; len(hits) != 1 || hits[0].ID != "1" {
		t.Fatalf("high_value_cash_deposits should flag row 1, got %+v", hits)
	}
	if hits := tables[domain.RuleLargeIncomingWires]; len(hits) != 1 || hits[0].ID != "2" {
		t.Fatalf("large_incoming_wires should flag row 2, got %+v", hits)
	}

	m := Aggregate(results)
	got := m.Rules("A")
	if len(got) < 2 {
		t.Fatalf("customer A should violate at least 2 rules, got %v", got)
	}

	filtered := m.FilterMin(2)
	if !filtered.Has("A") {
		t.Fatal("customer A must survive the min-violation filter")
	}
}

func TestMarshalJSON(t *testing.T) {
	m := NewMap()
	m.Add("alice", "r1")
	m.Add("alice", "r2")

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string][]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(decoded["alice"]) != 2 {
		t.Errorf("expected alice with 2 rules, got %v", decoded)
	}
}
