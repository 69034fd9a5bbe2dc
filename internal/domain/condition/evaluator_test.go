package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oocana-go/oocana/internal/domain/flow"
)

func TestEvaluate_FirstMatchingCaseWins(t *testing.T) {
	node := &flow.ConditionNode{
		Cases: []flow.ConditionCase{
			{Handle: "low", Predicate: flow.Predicate{Op: flow.OpLt, Handle: "n", Operand: float64(10)}},
			{Handle: "high", Predicate: flow.Predicate{Op: flow.OpGte, Handle: "n", Operand: float64(10)}},
		},
	}

	handle, ok := Evaluate(node, Bundle{"n": float64(5)})
	assert.True(t, ok)
	assert.Equal(t, flow.HandleName("low"), handle)

	handle, ok = Evaluate(node, Bundle{"n": float64(42)})
	assert.True(t, ok)
	assert.Equal(t, flow.HandleName("high"), handle)
}

func TestEvaluate_FallsBackToDefault(t *testing.T) {
	node := &flow.ConditionNode{
		Cases: []flow.ConditionCase{
			{Handle: "matched", Predicate: flow.Eq("status", "ready")},
		},
		Default: &flow.ConditionCase{Handle: "fallback"},
	}

	handle, ok := Evaluate(node, Bundle{"status": "pending"})
	assert.True(t, ok)
	assert.Equal(t, flow.HandleName("fallback"), handle)
}

func TestEvaluate_NoMatchNoDefaultEmitsNothing(t *testing.T) {
	node := &flow.ConditionNode{
		Cases: []flow.ConditionCase{
			{Handle: "matched", Predicate: flow.Eq("status", "ready")},
		},
	}

	handle, ok := Evaluate(node, Bundle{"status": "pending"})
	assert.False(t, ok)
	assert.Equal(t, flow.HandleName(""), handle)
}

func TestMatch_AndOrNot(t *testing.T) {
	bundle := Bundle{"a": true, "b": false}

	and := flow.Predicate{Op: flow.OpAnd, Children: []flow.Predicate{
		{Op: flow.OpTruthy, Handle: "a"},
		{Op: flow.OpTruthy, Handle: "b"},
	}}
	assert.False(t, Match(and, bundle))

	or := flow.Predicate{Op: flow.OpOr, Children: []flow.Predicate{
		{Op: flow.OpTruthy, Handle: "a"},
		{Op: flow.OpTruthy, Handle: "b"},
	}}
	assert.True(t, Match(or, bundle))

	not := flow.Predicate{Op: flow.OpNot, Children: []flow.Predicate{
		{Op: flow.OpTruthy, Handle: "b"},
	}}
	assert.True(t, Match(not, bundle))
}

func TestMatch_ExistsTrueForNilValueFalseForMissingHandle(t *testing.T) {
	bundle := Bundle{"handle": nil}

	assert.True(t, Match(flow.Predicate{Op: flow.OpExists, Handle: "handle"}, bundle))
	assert.False(t, Match(flow.Predicate{Op: flow.OpExists, Handle: "missing"}, bundle))
}

func TestMatch_EqDoesNotConfuseNumericAndStringLikeValues(t *testing.T) {
	bundle := Bundle{"n": "1"}
	assert.False(t, Match(flow.Eq("n", float64(1)), bundle), "string \"1\" must not equal number 1")
	assert.True(t, Match(flow.Eq("n", "1"), bundle))
}

func TestMatch_Comparisons(t *testing.T) {
	bundle := Bundle{"n": float64(10)}
	assert.True(t, Match(flow.Predicate{Op: flow.OpGt, Handle: "n", Operand: float64(5)}, bundle))
	assert.False(t, Match(flow.Predicate{Op: flow.OpLt, Handle: "n", Operand: float64(5)}, bundle))
	assert.True(t, Match(flow.Predicate{Op: flow.OpGte, Handle: "n", Operand: float64(10)}, bundle))
	assert.True(t, Match(flow.Predicate{Op: flow.OpLte, Handle: "n", Operand: float64(10)}, bundle))
}

func TestMatch_Always(t *testing.T) {
	assert.True(t, Match(flow.Always(), Bundle{}))
}
