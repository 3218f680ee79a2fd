package chatgenius

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnreadIncrementAndCount(t *testing.T) {
	tr := NewUnreadTracker()

	tr.Increment("a")
	tr.Increment("a")
	tr.Increment("b")

	assert.Equal(t, 2, tr.Count("a"))
	assert.Equal(t, 1, tr.Count("b"))
	assert.Equal(t, 0, tr.Count("never-seen"))
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, tr.Counts())
}

func TestUnreadSuppressesCurrentChannel(t *testing.T) {
	tr := NewUnreadTracker()
	tr.SetCurrentChannel("a")

	tr.Increment("a")
	tr.Increment("b")

	assert.Equal(t, 0, tr.Count("a"))
	assert.Equal(t, 1, tr.Count("b"))
	assert.Equal(t, "a", tr.CurrentChannel())
}

func TestSetCurrentChannelClearsBacklog(t *testing.T) {
	tr := NewUnreadTracker()
	tr.Increment("a")
	tr.Increment("a")

	tr.SetCurrentChannel("a")
	assert.Equal(t, 0, tr.Count("a"))

	// Switching away re-enables counting.
	tr.SetCurrentChannel("b")
	tr.Increment("a")
	assert.Equal(t, 1, tr.Count("a"))
}

func TestSetCurrentChannelEmptyMeansNoSelection(t *testing.T) {
	tr := NewUnreadTracker()
	tr.SetCurrentChannel("a")
	tr.SetCurrentChannel("")

	tr.Increment("a")
	assert.Equal(t, 1, tr.Count("a"))
	assert.Equal(t, "", tr.CurrentChannel())
}

func TestUnreadClear(t *testing.T) {
	tr := NewUnreadTracker()
	tr.Increment("a")
	tr.Increment("b")

	tr.Clear("a")
	assert.Equal(t, 0, tr.Count("a"))
	assert.Equal(t, 1, tr.Count("b"))

	tr.ClearAll()
	assert.Empty(t, tr.Counts())
}

func TestCountsReturnsCopy(t *testing.T) {
	tr := NewUnreadTracker()
	tr.Increment("a")

	counts := tr.Counts()
	counts["a"] = 99

	assert.Equal(t, 1, tr.Count("a"))
}
