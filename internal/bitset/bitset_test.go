package bitset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_SetClearHas(t *testing.T) {
	var s Set
	assert.True(t, s.Empty())

	s.SetBit(3)
	s.SetBit(0)
	assert.True(t, s.Has(0))
	assert.True(t, s.Has(3))
	assert.False(t, s.Has(1))
	assert.False(t, s.Empty())

	s.Clear(3)
	assert.False(t, s.Has(3))
	assert.True(t, s.Has(0))
}

func TestSet_LowestAscendingOrder(t *testing.T) {
	var s Set
	_, ok := s.Lowest()
	assert.False(t, ok)

	s.SetBit(5)
	s.SetBit(2)
	s.SetBit(9)

	idx, ok := s.Lowest()
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	s.Clear(2)
	idx, ok = s.Lowest()
	require.True(t, ok)
	assert.Equal(t, 5, idx)
}

func TestSet_Disjoint(t *testing.T) {
	var a, b Set
	a.SetBit(1)
	a.SetBit(2)
	b.SetBit(3)
	assert.True(t, a.Disjoint(b))

	b.SetBit(1)
	assert.False(t, a.Disjoint(b))
}

func TestSet_Reset(t *testing.T) {
	var s Set
	s.SetBit(4)
	s.SetBit(7)
	require.Equal(t, 2, s.Count())
	s.Reset()
	assert.True(t, s.Empty())
}

func TestSet_OutOfRangePanics(t *testing.T) {
	var s Set
	assert.Panics(t, func() { s.SetBit(32) })
	assert.Panics(t, func() { s.SetBit(-1) })
}
