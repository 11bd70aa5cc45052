package rules

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestRegistryPreloadsBuiltins(t *testing.T) {
	reg := NewRegistry()

	if reg.Count() != len(domain.BuiltinRuleNames()) {
		t.Fatalf("expected %d preloaded rules, got %d", len(domain.BuiltinRuleNames()), reg.Count())
	}
	for _, name := range domain.BuiltinRuleNames() {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("builtin rule %q missing from registry", name)
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Get("no_such_rule"); ok {
		t.Fatal("expected lookup miss for unknown rule")
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()

	rule, err := NewExpressionRule("round_amounts", "amount == 10000.0")
	if err != nil {
		t.Fatalf("failed to build expression rule: %v", err)
	}
	if err := reg.Register(rule); err != nil {
		t.Fatalf("failed to register rule: %v", err)
	}

	got, ok := reg.Get("round_amounts")
	if !ok || got.Name() != "round_amounts" {
		t.Fatal("registered rule not retrievable")
	}

	names := reg.Names()
	if names[len(names)-1] != "round_amounts" {
		t.Errorf("expected new rule last in registration order, got %v", names)
	}
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()

	rule, _ := NewExpressionRule(domain.RuleHighValueCashDeposits, "amount > 0.0")
	if err := reg.Register(rule); err == nil {
		t.Fatal("expected error registering duplicate rule name")
	}
}

func TestRegistryRejectsNil(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(nil); err == nil {
		t.Fatal("expected error registering nil rule")
	}
}

func TestRegistryNamesReturnsCopy(t *testing.T) {
	reg := NewRegistry()

	names := reg.Names()
	names[0] = "clobbered"

	if reg.Names()[0] == "clobbered" {
		t.Fatal("Names must return a copy, not internal state")
	}
}
