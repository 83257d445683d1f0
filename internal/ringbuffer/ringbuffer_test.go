package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPSCPushPop(t *testing.T) {
	rb := NewSPSC(8)
	n := rb.Push([]float32{1, 2, 3})
	require.Equal(t, 3, n)
	assert.Equal(t, 3, rb.Len())

	out := make([]float32, 4)
	got := rb.Pop(out)
	assert.Equal(t, 3, got)
	assert.Equal(t, []float32{1, 2, 3}, out[:got])
	assert.Equal(t, 0, rb.Len())
}

func TestSPSCDropsNewestOnOverrun(t *testing.T) {
	rb := NewSPSC(4)
	n := rb.Push([]float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(2), rb.Overruns())

	out := make([]float32, 4)
	got := rb.Pop(out)
	require.Equal(t, 4, got)
	assert.Equal(t, []float32{1, 2, 3, 4}, out)
}

func TestSPSCEmptyPopReturnsZero(t *testing.T) {
	rb := NewSPSC(4)
	out := make([]float32, 4)
	assert.Equal(t, 0, rb.Pop(out))
}

func TestBroadcastReaderStartsAtHead(t *testing.T) {
	b := NewBroadcast(8)
	b.Write([]float32{1, 2, 3})
	r := b.NewReader()

	out := make([]float32, 4)
	assert.Equal(t, 0, r.Read(out))

	b.Write([]float32{4, 5})
	got := r.Read(out)
	assert.Equal(t, 2, got)
	assert.Equal(t, []float32{4, 5}, out[:got])
}

func TestBroadcastLaggingReaderCountsOverrun(t *testing.T) {
	b := NewBroadcast(4)
	r := b.NewReader()
	b.Write([]float32{1, 2, 3, 4, 5, 6, 7, 8})

	out := make([]float32, 4)
	got := r.Read(out)
	assert.Equal(t, 4, got)
	assert.Equal(t, []float32{5, 6, 7, 8}, out)
	assert.Equal(t, uint64(4), r.Overruns())
}

func TestSizeForFloorsAndRoundsUpToPow2(t *testing.T) {
	assert.Equal(t, MinCapacity, SizeFor(8000, 1))
	assert.Equal(t, 16384, SizeFor(48000, 2))
}
