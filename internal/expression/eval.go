// Package expression implements the restricted policy expression language:
// comparisons, boolean logic, arithmetic and list membership over a fixed
// set of transaction fields. There are no function calls, assignments or
// loops, so every evaluation terminates.
//
// A whole expression must produce a boolean. Any other result, such as
// the number from "amount + 1", is a KindType error rather than a truthy
// value, and the policy matcher skips the policy instead of declining.
package expression

import (
	"math"
	"strings"
	"time"
)

// Context is the transaction an expression is evaluated against.
type Context struct {
	Amount   int64 // cents
	Merchant string
	Category string
	// Time binds hour and dayOfWeek when non-zero. Evaluation never reads
	// the wall clock.
	Time time.Time
	// Location binds location when non-empty.
	Location string
}

// Program is a compiled expression, safe for concurrent use.
type Program struct {
	source string
	root   node
}

// Compile parses an expression. Only syntax is checked; identifiers are
// resolved at evaluation time.
func Compile(src string) (*Program, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{source: src, root: root}, nil
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string {
	return p.source
}

// Eval evaluates the program against ctx. The result must be a boolean.
func (p *Program) Eval(ctx Context) (bool, error) {
	v, err := p.root.eval(newEnvironment(ctx))
	if err != nil {
		return false, err
	}
	if v.kind != kindBool {
		return false, errorf(KindType, 0, "expression evaluates to %s, not bool", v.kind)
	}
	return v.b, nil
}

// Evaluate compiles and evaluates src in one step.
func Evaluate(src string, ctx Context) (bool, error) {
	p, err := Compile(src)
	if err != nil {
		return false, err
	}
	return p.Eval(ctx)
}

type valueKind int

const (
	kindNumber valueKind = iota + 1
	kindString
	kindBool
)

func (k valueKind) String() string {
	switch k {
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	case kindBool:
		return "bool"
	}
	return "invalid"
}

type value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

func numberValue(f float64) value { return value{kind: kindNumber, num: f} }
func stringValue(s string) value  { return value{kind: kindString, str: s} }
func boolValue(b bool) value      { return value{kind: kindBool, b: b} }

func (v value) equal(o value) bool {
	switch v.kind {
	case kindNumber:
		return v.num == o.num
	case kindString:
		return v.str == o.str
	default:
		return v.b == o.b
	}
}

type environment struct {
	vars map[string]value
}

func newEnvironment(ctx Context) *environment {
	vars := map[string]value{
		"amount":   numberValue(float64(ctx.Amount)),
		"merchant": stringValue(ctx.Merchant),
		"category": stringValue(ctx.Category),
	}
	if !ctx.Time.IsZero() {
		vars["hour"] = numberValue(float64(ctx.Time.Hour()))
		vars["dayOfWeek"] = stringValue(strings.ToUpper(ctx.Time.Weekday().String()))
	}
	if ctx.Location != "" {
		vars["location"] = stringValue(ctx.Location)
	}
	return &environment{vars: vars}
}

func (n *literal) eval(*environment) (value, error) {
	return n.v, nil
}

func (n *identifier) eval(env *environment) (value, error) {
	v, ok := env.vars[n.name]
	if !ok {
		return value{}, errorf(KindUnknownIdentifier, n.pos, "unknown identifier %q", n.name)
	}
	return v, nil
}

func (n *unaryExpr) eval(env *environment) (value, error) {
	x, err := n.x.eval(env)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "!":
		if x.kind != kindBool {
			return value{}, errorf(KindType, n.pos, "operator ! requires bool, got %s", x.kind)
		}
		return boolValue(!x.b), nil
	default:
		if x.kind != kindNumber {
			return value{}, errorf(KindType, n.pos, "operator - requires number, got %s", x.kind)
		}
		return numberValue(-x.num), nil
	}
}

func (n *binaryExpr) eval(env *environment) (value, error) {
	l, err := n.l.eval(env)
	if err != nil {
		return value{}, err
	}

	if n.op == "&&" || n.op == "||" {
		if l.kind != kindBool {
			return value{}, errorf(KindType, n.pos, "operator %s requires bool operands, got %s", n.op, l.kind)
		}
		if (n.op == "&&" && !l.b) || (n.op == "||" && l.b) {
			return l, nil
		}
		r, err := n.r.eval(env)
		if err != nil {
			return value{}, err
		}
		if r.kind != kindBool {
			return value{}, errorf(KindType, n.pos, "operator %s requires bool operands, got %s", n.op, r.kind)
		}
		return r, nil
	}

	r, err := n.r.eval(env)
	if err != nil {
		return value{}, err
	}

	switch n.op {
	case "==", "!=":
		if l.kind != r.kind {
			return value{}, errorf(KindType, n.pos, "cannot compare %s %s %s", l.kind, n.op, r.kind)
		}
		return boolValue(l.equal(r) == (n.op == "==")), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r, n.pos)
	default:
		return arithmetic(n.op, l, r, n.pos)
	}
}

func compare(op string, l, r value, pos int) (value, error) {
	var c int
	switch {
	case l.kind == kindNumber && r.kind == kindNumber:
		switch {
		case l.num < r.num:
			c = -1
		case l.num > r.num:
			c = 1
		}
	case l.kind == kindString && r.kind == kindString:
		c = strings.Compare(l.str, r.str)
	default:
		return value{}, errorf(KindType, pos, "cannot order %s %s %s", l.kind, op, r.kind)
	}
	switch op {
	case "<":
		return boolValue(c < 0), nil
	case "<=":
		return boolValue(c <= 0), nil
	case ">":
		return boolValue(c > 0), nil
	default:
		return boolValue(c >= 0), nil
	}
}

func arithmetic(op string, l, r value, pos int) (value, error) {
	if l.kind != kindNumber || r.kind != kindNumber {
		return value{}, errorf(KindType, pos, "operator %s requires numbers, got %s and %s", op, l.kind, r.kind)
	}
	switch op {
	case "+":
		return numberValue(l.num + r.num), nil
	case "-":
		return numberValue(l.num - r.num), nil
	case "*":
		return numberValue(l.num * r.num), nil
	case "/":
		if r.num == 0 {
			return value{}, errorf(KindDivisionByZero, pos, "division by zero")
		}
		return numberValue(l.num / r.num), nil
	default:
		if r.num == 0 {
			return value{}, errorf(KindDivisionByZero, pos, "modulo by zero")
		}
		return numberValue(math.Mod(l.num, r.num)), nil
	}
}

func (n *inExpr) eval(env *environment) (value, error) {
	x, err := n.x.eval(env)
	if err != nil {
		return value{}, err
	}
	if x.kind == kindBool {
		return value{}, errorf(KindType, n.pos, "operator in requires number or string, got bool")
	}
	found := false
	for _, item := range n.items {
		v, err := item.eval(env)
		if err != nil {
			return value{}, err
		}
		if v.kind != x.kind {
			return value{}, errorf(KindType, n.pos, "list element is %s, expected %s", v.kind, x.kind)
		}
		if !found && v.equal(x) {
			found = true
		}
	}
	return boolValue(found), nil
}
