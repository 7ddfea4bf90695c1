package acir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWitnessMapInsertReturnsPrevious(t *testing.T) {
	m := WitnessMap{}
	assert.Nil(t, m.Insert(1, elem(5)))

	prev := m.Insert(1, elem(7))
	require.NotNil(t, prev)
	assert.Equal(t, elem(5), *prev)

	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, elem(7), v)
}

func TestWitnessMapCopyIsIndependent(t *testing.T) {
	m := WitnessMap{0: elem(1), 2: elem(3)}
	c := m.Copy()
	require.True(t, m.Equal(c))

	c.Insert(0, elem(9))
	v, _ := m.Get(0)
	assert.Equal(t, elem(1), v)
	assert.False(t, m.Equal(c))
}

func TestWitnessMapIndices(t *testing.T) {
	m := WitnessMap{5: elem(1), 0: elem(2), 3: elem(3)}
	assert.Equal(t, []Witness{0, 3, 5}, m.Indices())
}

func TestParseFieldElement(t *testing.T) {
	v, err := ParseFieldElement("42")
	require.NoError(t, err)
	assert.Equal(t, elem(42), v)

	v, err = ParseFieldElement("0x2a")
	require.NoError(t, err)
	assert.Equal(t, elem(42), v)

	_, err = ParseFieldElement("not-a-number")
	assert.Error(t, err)
}
