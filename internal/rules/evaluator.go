package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// RefProvider supplies the reference data snapshot for an evaluation pass.
type RefProvider interface {
	Current() *domain.ReferenceData
}

// Evaluator applies a selection of registered rules to a transaction table.
type Evaluator struct {
	registry *Registry
	ref      RefProvider
}

// NewEvaluator creates an evaluator over the given registry and reference
// data provider.
func NewEvaluator(registry *Registry, ref RefProvider) *Evaluator {
	return &Evaluator{
		registry: registry,
		ref:      ref,
	}
}

// Evaluate applies the selected rules and returns one result per valid
// selected name, in selection order, including empty sub-tables.
//
// Selection names that are not registered are silently skipped. If
// customerID is non-empty the table is scoped to that customer's rows
// before any predicate runs; predicates are row-local, so this is
// equivalent to filtering afterwards, just cheaper. An empty selection
// means all registered rules.
//
// The reference data snapshot is taken once at the start of the pass, so
// every rule (including large_incoming_wires) matches against the same
// lists even if a reload happens mid-pass.
func (e *Evaluator) Evaluate(txs []domain.Transaction, selected []string, customerID string) []domain.RuleResult {
	if len(selected) == 0 {
		selected = e.registry.Names()
	}

	var ref *domain.ReferenceData
	if e.ref != nil {
		ref = e.ref.Current()
	}

	if customerID != "" {
		scoped := make([]domain.Transaction, 0)
		for _, tx := range txs {
			if tx.CustomerID == customerID {
				scoped = append(scoped, tx)
			}
		}
		txs = scoped
	}

	results := make([]domain.RuleResult, 0, len(selected))
	for _, name := range selected {
		rule, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		results = append(results, domain.RuleResult{
			Rule:         name,
			Transactions: rule.Apply(txs, ref),
		})
	}

	return results
}

// FlaggedTransactions returns the union of all rule sub-tables,
// de-duplicated by transaction ID, in first-flagged order. This is the
// flat view used when selecting transactions for a SAR.
func FlaggedTransactions(results []domain.RuleResult) []domain.Transaction {
	seen := make(map[string]struct{})
	flat := make([]domain.Transaction, 0)
	for _, r := range results {
		for _, tx := range r.Transactions {
			if _, ok := seen[tx.ID]; ok {
				continue
			}
			seen[tx.ID] = struct{}{}
			flat = append(flat, tx)
		}
	}
	return flat
}

// BrokenRules returns the names of rules whose result tables contain the
// given transaction, in result order.
func BrokenRules(results []domain.RuleResult, transactionID string) []string {
	var broken []string
	for _, r := range results {
		for _, tx := range r.Transactions {
			if tx.ID == transactionID {
				broken = append(broken, r.Rule)
				break
			}
		}
	}
	return broken
}
