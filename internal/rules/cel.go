package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	celEnvOnce sync.Once
	celEnv     *cel.Env
	celEnvErr  error
)

// env returns the shared CEL environment exposing the transaction fields
// available to operator-defined rules.
func env() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("transaction_id", cel.StringType),
			cel.Variable("customer_id", cel.StringType),
			cel.Variable("amount", cel.DoubleType),
			cel.Variable("tx_type", cel.StringType),
			cel.Variable("country", cel.StringType),
			cel.Variable("description", cel.StringType),
			cel.Variable("velocity", cel.DoubleType),
			cel.Variable("account_balance", cel.DoubleType),
		)
	})
	return celEnv, celEnvErr
}

// ExpressionRule is an operator-defined rule backed by a compiled CEL
// expression. It behaves exactly like a built-in rule: a pure row-local
// filter over the table. Expressions cannot reach the reference lists;
// those stay the domain of the built-in rules.
type ExpressionRule struct {
	name       string
	expression string
	program    cel.Program
}

// NewExpressionRule compiles a CEL expression into a rule.
// The expression must evaluate to bool.
func NewExpressionRule(name, expression string) (*ExpressionRule, error) {
	if name == "" {
		return nil, fmt.Errorf("rule name is required")
	}
	if expression == "" {
		return nil, fmt.Errorf("rule expression is required")
	}

	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := e.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", name, ast.OutputType())
	}

	program, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", name, err)
	}

	return &ExpressionRule{
		name:       name,
		expression: expression,
		program:    program,
	}, nil
}

// Name returns the rule name.
func (r *ExpressionRule) Name() string { return r.name }

// Expression returns the source CEL expression.
func (r *ExpressionRule) Expression() string { return r.expression }

// Apply filters the table down to rows where the expression is true.
// Rows where evaluation errors are excluded rather than aborting the pass:
// a misbehaving custom rule degrades to fewer results, never to a failed
// screening run.
func (r *ExpressionRule) Apply(txs []domain.Transaction, _ *domain.ReferenceData) []domain.Transaction {
	flagged := make([]domain.Transaction, 0)
	for _, tx := range txs {
		out, _, err := r.program.Eval(map[string]any{
			"transaction_id":  tx.ID,
			"customer_id":     tx.CustomerID,
			"amount":          tx.Amount,
			"tx_type":         tx.Type,
			"country":         tx.Country,
			"description":     tx.Description,
			"velocity":        tx.Velocity,
			"account_balance": tx.AccountBalance,
		})
		if err != nil {
			continue
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			flagged = append(flagged, tx)
		}
	}
	return flagged
}
