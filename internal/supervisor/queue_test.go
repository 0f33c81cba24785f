package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue_FIFO(t *testing.T) {
	var q queue

	_, ok := q.front()
	assert.False(t, ok)
	assert.Nil(t, q.snapshot())

	q.push("a")
	q.push("b")
	q.push("c")
	assert.Equal(t, 3, q.len())

	snap := q.snapshot()
	assert.Equal(t, []string{"a", "b", "c"}, snap)
	snap[0] = "mutated"

	front, ok := q.front()
	assert.True(t, ok)
	assert.Equal(t, "a", front)

	q.pop()
	q.pop()
	front, _ = q.front()
	assert.Equal(t, "c", front)

	q.pop()
	assert.Equal(t, 0, q.len())
	assert.Nil(t, q.snapshot())
}
