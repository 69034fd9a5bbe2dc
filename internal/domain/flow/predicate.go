package flow

// PredicateOp names one operator in the small structured-JSON predicate
// language a condition case's manifest expresses: a small interpreter,
// not an embedded script language.
type PredicateOp string

const (
	OpEq      PredicateOp = "eq"
	OpNeq     PredicateOp = "neq"
	OpGt      PredicateOp = "gt"
	OpGte     PredicateOp = "gte"
	OpLt      PredicateOp = "lt"
	OpLte     PredicateOp = "lte"
	OpExists  PredicateOp = "exists"
	OpTruthy  PredicateOp = "truthy"
	OpAnd     PredicateOp = "and"
	OpOr      PredicateOp = "or"
	OpNot     PredicateOp = "not"
	OpAlways  PredicateOp = "always"
)

// Predicate is one node of the predicate tree. Leaf operators
// (eq/neq/gt/gte/lt/lte/exists/truthy) read Handle out of the input
// bundle and compare it against Operand. Combinators (and/or/not) read
// Children instead.
type Predicate struct {
	Op       PredicateOp
	Handle   HandleName
	Operand  interface{}
	Children []Predicate
}

func Eq(handle HandleName, operand interface{}) Predicate {
	return Predicate{Op: OpEq, Handle: handle, Operand: operand}
}

func Always() Predicate { return Predicate{Op: OpAlways} }
