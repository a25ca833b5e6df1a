// Package predicate implements the entry/exit condition DSL.
//
// A predicate is a boolean expression over two variables: `price` (the
// current tick price, a decimal) and `time` (minutes since local midnight,
// an integer). The grammar:
//
//	expr     := or_expr
//	or_expr  := and_expr ( "OR"  and_expr )*
//	and_expr := cmp_expr ( "AND" cmp_expr )*
//	cmp_expr := atom cmp_op atom | "(" expr ")"
//	atom     := "price" | "time" | number | HH:MM
//	cmp_op   := "<" | "<=" | ">" | ">=" | "=="
//
// Strategy files are configuration, not trusted code: nothing outside this
// grammar is accepted, and evaluation cannot fail once parsing succeeded.
// Comparisons are typed at parse time. Numbers compare against `price`,
// HH:MM tokens (converted to minutes since midnight) compare against
// `time`; mixing the two kinds is a parse error.
package predicate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Env is the variable environment a predicate is evaluated against.
type Env struct {
	Price decimal.Decimal // current tick price
	Time  int             // minutes since local midnight
}

// Expr is a parsed predicate.
type Expr interface {
	// Eval evaluates the predicate against env. It never fails.
	Eval(env Env) bool
	// String renders the predicate as parseable DSL source.
	String() string
}

// kind is the static type of a comparison: price-valued or time-valued.
type kind int

const (
	kindPrice kind = iota
	kindTime
)

func (k kind) String() string {
	if k == kindTime {
		return "time"
	}
	return "price"
}

// operand is one side of a comparison: a variable or a literal.
type operand struct {
	variable bool
	kind     kind
	price    decimal.Decimal // literal value when kind == kindPrice
	minutes  int             // literal value when kind == kindTime
}

func (o operand) String() string {
	if o.variable {
		return o.kind.String()
	}
	if o.kind == kindTime {
		return fmt.Sprintf("%02d:%02d", o.minutes/60, o.minutes%60)
	}
	return o.price.String()
}

// compare is a single typed comparison node.
type compare struct {
	op       string
	lhs, rhs operand
	kind     kind
}

func (c *compare) Eval(env Env) bool {
	if c.kind == kindTime {
		l, r := timeValue(c.lhs, env), timeValue(c.rhs, env)
		switch c.op {
		case "<":
			return l < r
		case "<=":
			return l <= r
		case ">":
			return l > r
		case ">=":
			return l >= r
		default:
			return l == r
		}
	}

	cmp := priceValue(c.lhs, env).Cmp(priceValue(c.rhs, env))
	switch c.op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return cmp == 0
	}
}

func (c *compare) String() string {
	return fmt.Sprintf("%s %s %s", c.lhs, c.op, c.rhs)
}

func priceValue(o operand, env Env) decimal.Decimal {
	if o.variable {
		return env.Price
	}
	return o.price
}

func timeValue(o operand, env Env) int {
	if o.variable {
		return env.Time
	}
	return o.minutes
}

// binary is an AND/OR node. Evaluation short-circuits.
type binary struct {
	op       string // "AND" or "OR"
	lhs, rhs Expr
}

func (b *binary) Eval(env Env) bool {
	if b.op == "AND" {
		return b.lhs.Eval(env) && b.rhs.Eval(env)
	}
	return b.lhs.Eval(env) || b.rhs.Eval(env)
}

func (b *binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.lhs, b.op, b.rhs)
}

// HasPriceEquality reports whether the predicate contains an exact equality
// comparison on a price value. Exact decimal equality rarely fires on a
// simulated feed, so callers warn about it at startup.
func HasPriceEquality(e Expr) bool {
	switch n := e.(type) {
	case *compare:
		return n.op == "==" && n.kind == kindPrice
	case *binary:
		return HasPriceEquality(n.lhs) || HasPriceEquality(n.rhs)
	}
	return false
}

// FirstPriceLiteral returns the first price-valued literal in the predicate,
// scanning depth-first left to right. Used to seed an instrument's simulated
// price when no configured seed exists.
func FirstPriceLiteral(e Expr) (decimal.Decimal, bool) {
	switch n := e.(type) {
	case *compare:
		if n.kind != kindPrice {
			return decimal.Decimal{}, false
		}
		if !n.lhs.variable {
			return n.lhs.price, true
		}
		if !n.rhs.variable {
			return n.rhs.price, true
		}
	case *binary:
		if v, ok := FirstPriceLiteral(n.lhs); ok {
			return v, true
		}
		return FirstPriceLiteral(n.rhs)
	}
	return decimal.Decimal{}, false
}
