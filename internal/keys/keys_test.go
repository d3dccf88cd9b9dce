package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys_For(t *testing.T) {
	q := For("mining")
	assert.Equal(t, "mining", q.Name)
	assert.Equal(t, "credmine:{mining}:index", q.Index)
	assert.Equal(t, "credmine:{mining}:task:tab-1", q.Task("tab-1"))
}

func TestKeys_QueuesShareNoKeys(t *testing.T) {
	a, b := For("a"), For("b")
	assert.NotEqual(t, a.Index, b.Index)
	assert.NotEqual(t, a.Task("x"), b.Task("x"))
}
