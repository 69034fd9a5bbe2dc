package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_ReturnsDistinctParsableStrings(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	assert.True(t, IsValid(a))
	assert.True(t, IsValid(b))
}

func TestIsValid_RejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-a-uuid"))
}

func TestParse_RoundTripsWithString(t *testing.T) {
	s := New()
	u, err := Parse(s)
	assert.NoError(t, err)
	assert.Equal(t, s, u.String())
}

func TestMustParse_PanicsOnInvalidInput(t *testing.T) {
	assert.Panics(t, func() { MustParse("not-a-uuid") })
}

func TestNilAndIsNil(t *testing.T) {
	assert.True(t, IsNil(Nil()))
	assert.False(t, IsNil(NewUUID()))
}
