// Package violations derives per-customer violation sets from rule results.
package violations

import (
	"encoding/json"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Map records, per customer, the set of rule names that customer's
// transactions triggered. A customer is present only if at least one rule
// flagged one of their transactions; there are no empty sets. Iteration
// order is first-encounter order, which is what makes pagination stable.
type Map struct {
	order []string
	sets  map[string]map[string]struct{}
	rules map[string][]string // per-customer rule names, first-added order
}

// NewMap creates an empty violation map.
func NewMap() *Map {
	return &Map{
		sets:  make(map[string]map[string]struct{}),
		rules: make(map[string][]string),
	}
}

// Add records that customerID violated rule.
func (m *Map) Add(customerID, rule string) {
	set, ok := m.sets[customerID]
	if !ok {
		set = make(map[string]struct{})
		m.sets[customerID] = set
		m.order = append(m.order, customerID)
	}
	if _, dup := set[rule]; dup {
		return
	}
	set[rule] = struct{}{}
	m.rules[customerID] = append(m.rules[customerID], rule)
}

// Rules returns the rule names customerID violated, in first-flagged
// order, or nil if the customer is absent.
func (m *Map) Rules(customerID string) []string {
	rules, ok := m.rules[customerID]
	if !ok {
		return nil
	}
	return append([]string(nil), rules...)
}

// Has reports whether customerID appears in the map.
func (m *Map) Has(customerID string) bool {
	_, ok := m.sets[customerID]
	return ok
}

// Customers returns the customer IDs in first-encounter order.
func (m *Map) Customers() []string {
	return append([]string(nil), m.order...)
}

// Len returns the number of customers in the map.
func (m *Map) Len() int {
	return len(m.order)
}

// MarshalJSON serializes the map as plain customer -> rule names, the
// shape presentation collaborators consume.
func (m *Map) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(m.rules))
	for customer, rules := range m.rules {
		out[customer] = rules
	}
	return json.Marshal(out)
}

// Aggregate walks the rule results in order and accumulates each rule's
// name into the violating customer's set. Rule results must be in
// selection order for the resulting customer order to be deterministic.
func Aggregate(results []domain.RuleResult) *Map {
	m := NewMap()
	for _, r := range results {
		for _, tx := range r.Transactions {
			m.Add(tx.CustomerID, r.Rule)
		}
	}
	return m
}

// DefaultMinViolations is the threshold for the "multiple violations"
// view: customers triggering exactly one rule are excluded.
const DefaultMinViolations = 2

// FilterMin returns a new map keeping only customers with at least
// threshold violated rules, preserving encounter order.
func (m *Map) FilterMin(threshold int) *Map {
	filtered := NewMap()
	for _, customer := range m.order {
		if len(m.rules[customer]) < threshold {
			continue
		}
		for _, rule := range m.rules[customer] {
			filtered.Add(customer, rule)
		}
	}
	return filtered
}

// Entry is one customer's violations in a paginated view.
type Entry struct {
	CustomerID string   `json:"customerId"`
	Rules      []string `json:"rules"`
}

// PageCount returns ceil(Len / pageSize). Zero for an invalid page size.
func (m *Map) PageCount(pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (len(m.order) + pageSize - 1) / pageSize
}

// Page returns the 1-based page of entries for the given size. Pages are
// pure, stable slices of the encounter order: repeated calls with
// unchanged input return identical pages. Out-of-range pages are empty.
func (m *Map) Page(page, pageSize int) []Entry {
	if page < 1 || pageSize <= 0 {
		return []Entry{}
	}

	start := (page - 1) * pageSize
	if start >= len(m.order) {
		return []Entry{}
	}
	end := start + pageSize
	if end > len(m.order) {
		end = len(m.order)
	}

	entries := make([]Entry, 0, end-start)
	for _, customer := range m.order[start:end] {
		entries = append(entries, Entry{
			CustomerID: customer,
			Rules:      append([]string(nil), m.rules[customer]...),
		})
	}
	return entries
}
