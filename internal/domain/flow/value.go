package flow

// valueState discriminates the three states a FromValue literal can be
// in. A plain Go pointer-to-interface collapses "explicitly null" and
// "unset" into the same nil, so we keep the three states explicit
// instead.
type valueState int

const (
	stateUnset valueState = iota
	stateExplicitNull
	statePresent
)

// ValueLiteral is a tri-state value: Unset (nothing supplied — some
// other source on the handle must provide it), ExplicitNull (the
// manifest wrote `null` on purpose), or Present (an actual value,
// which may itself be any JSON-representable Go value including nil
// interfaces produced by json.Unmarshal — that is still "present").
type ValueLiteral struct {
	state valueState
	value interface{}
}

// Unset returns the "no literal at all" state.
func Unset() ValueLiteral { return ValueLiteral{state: stateUnset} }

// ExplicitNull returns the "manifest wrote null" state.
func ExplicitNull() ValueLiteral { return ValueLiteral{state: stateExplicitNull} }

// Present wraps a concrete value.
func Present(v interface{}) ValueLiteral { return ValueLiteral{state: statePresent, value: v} }

// IsUnset reports whether no literal was supplied.
func (v ValueLiteral) IsUnset() bool { return v.state == stateUnset }

// IsExplicitNull reports whether the manifest wrote null explicitly.
func (v ValueLiteral) IsExplicitNull() bool { return v.state == stateExplicitNull }

// IsPresent reports whether a concrete value is carried.
func (v ValueLiteral) IsPresent() bool { return v.state == statePresent }

// Value returns the carried value and whether one is present. Callers
// that need "is there anything usable here at all" should check
// IsPresent || IsExplicitNull instead of relying on a zero value.
func (v ValueLiteral) Value() (interface{}, bool) {
	return v.value, v.state == statePresent
}

// Satisfies reports whether this literal satisfies a handle declared
// with the given nullable flag. Unset never satisfies. ExplicitNull
// satisfies only a nullable handle. Present always satisfies, even a
// zero-ish present value (empty string, 0, false) — presence, not
// truthiness, is what the Node Input Store cares about.
func (v ValueLiteral) Satisfies(nullable bool) bool {
	switch v.state {
	case statePresent:
		return true
	case stateExplicitNull:
		return nullable
	default:
		return false
	}
}
