// Package rules provides the red-flag rule registry and evaluator.
package rules

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// rowRule is a built-in rule backed by a row-local predicate.
type rowRule struct {
	name  string
	match func(tx domain.Transaction, ref *domain.ReferenceData) bool
}

func (r rowRule) Name() string { return r.name }

// Apply filters the table down to matching rows, preserving order.
// The input is never mutated; the result is always a fresh slice.
func (r rowRule) Apply(txs []domain.Transaction, ref *domain.ReferenceData) []domain.Transaction {
	flagged := make([]domain.Transaction, 0)
	for _, tx := range txs {
		if r.match(tx, ref) {
			flagged = append(flagged, tx)
		}
	}
	return flagged
}

// builtinRules returns the seven red-flag rules in registration order.
// The predicates encode BSA/AML compliance semantics; boundary behavior is
// deliberate (strict comparisons throughout, and the structuring interval
// excludes both 9000 and the 10000 CTR threshold itself).
func builtinRules() []domain.Rule {
	return []domain.Rule{
		rowRule{
			name: domain.RuleHighValueCashDeposits,
			match: func(tx domain.Transaction, _ *domain.ReferenceData) bool {
				return tx.Type == "deposit" && tx.Amount > 9000
			},
		},
		rowRule{
			name: domain.RuleStructuredTransactions,
			match: func(tx domain.Transaction, _ *domain.ReferenceData) bool {
				return tx.Amount > 9000 && tx.Amount < 10000
			},
		},
		rowRule{
			name: domain.RuleHighRiskCountryTransactions,
			match: func(tx domain.Transaction, ref *domain.ReferenceData) bool {
				return ref.IsHighRiskCountry(tx.Country)
			},
		},
		rowRule{
			name: domain.RuleHighVelocityCashActivity,
			match: func(tx domain.Transaction, _ *domain.ReferenceData) bool {
				return tx.Velocity > 8
			},
		},
		rowRule{
			name: domain.RuleKeywordsHitting,
			match: func(tx domain.Transaction, ref *domain.ReferenceData) bool {
				return ref.MatchesKeyword(tx.Description)
			},
		},
		rowRule{
			name: domain.RuleUnusualTransactionPatterns,
			match: func(tx domain.Transaction, _ *domain.ReferenceData) bool {
				return tx.Amount > 5000 && tx.Type == "withdrawal" && tx.Velocity > 5
			},
		},
		rowRule{
			name: domain.RuleLargeIncomingWires,
			match: func(tx domain.Transaction, ref *domain.ReferenceData) bool {
				return tx.Amount > 15000 && tx.Type == "transfer" && ref.IsHighRiskCountry(tx.Country)
			},
		},
	}
}
