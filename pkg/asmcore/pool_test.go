package asmcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedPoolInsertionOrder(t *testing.T) {
	p := newOrderedPool[int32]()
	p.Register(100)
	p.Register(5)
	p.Register(100) // duplicate, ignored
	p.Register(-7)

	require.Equal(t, []int32{100, 5, -7}, p.Entries())
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, uint32(12), p.Size())
}

func TestOrderedPoolAllocateIsStable(t *testing.T) {
	p := newOrderedPool[string]()
	p.Register("b")
	p.Register("a")
	p.Register("c")

	end := p.Allocate(16)
	assert.Equal(t, uint32(28), end)

	bOff, ok := p.Offset("b")
	require.True(t, ok)
	assert.Equal(t, uint32(16), bOff)

	aOff, _ := p.Offset("a")
	assert.Equal(t, uint32(20), aOff)

	cOff, _ := p.Offset("c")
	assert.Equal(t, uint32(24), cOff)

	// Re-running Allocate from the same start yields the same offsets:
	// determinism is the whole point.
	p.Allocate(16)
	bOff2, _ := p.Offset("b")
	assert.Equal(t, bOff, bOff2)
}

func TestOrderedPoolOffsetMissing(t *testing.T) {
	p := newOrderedPool[int32]()
	_, ok := p.Offset(42)
	assert.False(t, ok)
}
