package segment

import (
	"errors"
	"fmt"
)

// Var names a quantity a rule can test.
type Var string

const (
	VarR    Var = "r"
	VarF    Var = "f"
	VarM    Var = "m"
	VarCode Var = "code"
)

// Of reads the variable off a score.
func (v Var) Of(s Score) int {
	switch v {
	case VarR:
		return s.R
	case VarF:
		return s.F
	case VarM:
		return s.M
	case VarCode:
		return s.Code()
	}
	return 0
}

// CmpOp compares a score variable with a constant.
type CmpOp string

const (
	OpEq  CmpOp = "=="
	OpGte CmpOp = ">="
	OpLte CmpOp = "<="
	OpGt  CmpOp = ">"
	OpLt  CmpOp = "<"
)

// Holds reports whether a op b. Unknown operators never hold.
func (op CmpOp) Holds(a, b int) bool {
	switch op {
	case OpEq:
		return a == b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	}
	return false
}

// Expr is a boolean condition over a Score. The concrete types below are the
// only ones push-down compilers need to understand.
type Expr interface {
	Eval(s Score) bool
}

// Cmp compares one variable against a constant.
type Cmp struct {
	Var   Var
	Op    CmpOp
	Value int
}

func (c Cmp) Eval(s Score) bool { return c.Op.Holds(c.Var.Of(s), c.Value) }

func (c Cmp) String() string { return fmt.Sprintf("%s %s %d", c.Var, c.Op, c.Value) }

// All is a conjunction.
type All []Expr

func (a All) Eval(s Score) bool {
	for _, e := range a {
		if !e.Eval(s) {
			return false
		}
	}
	return true
}

// Any is a disjunction.
type Any []Expr

func (a Any) Eval(s Score) bool {
	for _, e := range a {
		if e.Eval(s) {
			return true
		}
	}
	return false
}

// Always matches every score.
type Always struct{}

func (Always) Eval(Score) bool { return true }

// Is builds the comparison v op value.
func Is(v Var, op CmpOp, value int) Cmp {
	return Cmp{Var: v, Op: op, Value: value}
}

// Rule assigns Label to any score matching When.
type Rule struct {
	Label Label
	When  Expr
}

// DefaultRules is the segment cascade, evaluated top to bottom.
var DefaultRules = []Rule{
	{Label: Champions, When: Is(VarCode, OpGte, 544)},
	{Label: LoyalCustomers, When: Any{
		Is(VarR, OpEq, 5),
		All{Is(VarR, OpEq, 4), Is(VarF, OpGte, 4)},
	}},
	{Label: FrequentBuyers, When: Is(VarF, OpEq, 5)},
	{Label: BigSpenders, When: Is(VarM, OpEq, 5)},
	{Label: PotentialLoyalists, When: All{Is(VarR, OpGte, 4), Is(VarF, OpLte, 2)}},
	{Label: AtRisk, When: Is(VarR, OpEq, 2)},
	{Label: Hibernating, When: Always{}},
}

var ErrRulesNotTotal = errors.New("rule cascade must end with a catch-all rule")

// ValidateRules checks that a cascade only uses known labels and always
// produces a label.
func ValidateRules(rules []Rule) error {
	if len(rules) == 0 {
		return ErrRulesNotTotal
	}
	for i, r := range rules {
		if _, ok := ParseLabel(string(r.Label)); !ok {
			return fmt.Errorf("rule %d: unknown segment %q", i, r.Label)
		}
		if r.When == nil {
			return fmt.Errorf("rule %d (%s): missing condition", i, r.Label)
		}
	}
	if _, ok := rules[len(rules)-1].When.(Always); !ok {
		return ErrRulesNotTotal
	}
	return nil
}

// Match returns the label of the first rule that holds for s.
func Match(rules []Rule, s Score) Label {
	for _, r := range rules {
		if r.When.Eval(s) {
			return r.Label
		}
	}
	return Hibernating
}
