// Package condition implements the Condition Evaluator: a small
// interpreter over the structured-JSON predicate language a manifest's
// condition cases are expressed in, plus the ordered case-then-default
// matching rule a condition node fires by.
package condition

import (
	"fmt"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

// Bundle is the input-handle → value view a condition node's cases are
// evaluated against. It is exactly what internal/domain/inputstore
// composes for a fire.
type Bundle map[flow.HandleName]interface{}

// Evaluate runs a condition node's cases in declared order and returns
// the handle of the first matching case. If none match, it falls back
// to the default (if any). Returns ("", false) when nothing matches and
// there is no default — the node finishes without emitting.
func Evaluate(node *flow.ConditionNode, bundle Bundle) (flow.HandleName, bool) {
	for _, c := range node.Cases {
		if Match(c.Predicate, bundle) {
			return c.Handle, true
		}
	}
	if node.Default != nil {
		return node.Default.Handle, true
	}
	return "", false
}

// Match evaluates one predicate node against a bundle.
func Match(p flow.Predicate, bundle Bundle) bool {
	switch p.Op {
	case flow.OpAlways:
		return true
	case flow.OpAnd:
		for _, child := range p.Children {
			if !Match(child, bundle) {
				return false
			}
		}
		return true
	case flow.OpOr:
		for _, child := range p.Children {
			if Match(child, bundle) {
				return true
			}
		}
		return false
	case flow.OpNot:
		if len(p.Children) != 1 {
			return false
		}
		return !Match(p.Children[0], bundle)
	case flow.OpExists:
		_, ok := bundle[p.Handle]
		return ok
	case flow.OpTruthy:
		v, ok := bundle[p.Handle]
		return ok && truthy(v)
	case flow.OpEq:
		v, ok := bundle[p.Handle]
		return ok && equal(v, p.Operand)
	case flow.OpNeq:
		v, ok := bundle[p.Handle]
		return !ok || !equal(v, p.Operand)
	case flow.OpGt, flow.OpGte, flow.OpLt, flow.OpLte:
		v, ok := bundle[p.Handle]
		if !ok {
			return false
		}
		return compare(p.Op, v, p.Operand)
	default:
		return false
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

func equal(a, b interface{}) bool {
	return fmt.Sprint(a) == fmt.Sprint(b) && sameNumericClass(a, b)
}

// sameNumericClass guards against "1" (string) == 1 (number) comparing
// equal just because fmt.Sprint renders them the same. Anything
// non-numeric falls through to the string comparison above.
func sameNumericClass(a, b interface{}) bool {
	_, aNum := toFloat(a)
	_, bNum := toFloat(b)
	if aNum != bNum {
		return false
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func compare(op flow.PredicateOp, a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case flow.OpGt:
		return af > bf
	case flow.OpGte:
		return af >= bf
	case flow.OpLt:
		return af < bf
	case flow.OpLte:
		return af <= bf
	default:
		return false
	}
}
