package domain

// Rule is a named detection predicate over a transaction table.
// Apply returns the sub-table of matching rows: always a sub-sequence of
// its input with order preserved, never a mutation of it. Predicates are
// row-local and read reference data only through the snapshot they are
// handed, so a rule may be applied concurrently to different tables.
type Rule interface {
	Name() string
	Apply(txs []Transaction, ref *ReferenceData) []Transaction
}

// Built-in red-flag rule names. The registry registers exactly these at
// construction time, in this order.
const (
	RuleHighValueCashDeposits       = "high_value_cash_deposits"
	RuleStructuredTransactions      = "structured_transactions"
	RuleHighRiskCountryTransactions = "high_risk_country_transactions"
	RuleHighVelocityCashActivity    = "high_velocity_cash_activity"
	RuleKeywordsHitting             = "keywords_hitting"
	RuleUnusualTransactionPatterns  = "unusual_transaction_patterns"
	RuleLargeIncomingWires          = "large_incoming_wires"
)

// BuiltinRuleNames returns the built-in rule names in registration order.
func BuiltinRuleNames() []string {
	return []string{
		RuleHighValueCashDeposits,
		RuleStructuredTransactions,
		RuleHighRiskCountryTransactions,
		RuleHighVelocityCashActivity,
		RuleKeywordsHitting,
		RuleUnusualTransactionPatterns,
		RuleLargeIncomingWires,
	}
}

// RuleResult is one rule's flagged sub-table from an evaluation pass.
// Results are returned in selection order so that downstream aggregation
// and pagination are deterministic.
type RuleResult struct {
	Rule         string        `json:"rule"`
	Transactions []Transaction `json:"transactions"`
}

// ResultTables converts ordered rule results to the plain rule -> rows
// mapping exposed to presentation collaborators.
func ResultTables(results []RuleResult) map[string][]Transaction {
	tables := make(map[string][]Transaction, len(results))
	for _, r := range results {
		tables[r.Rule] = r.Transactions
	}
	return tables
}
