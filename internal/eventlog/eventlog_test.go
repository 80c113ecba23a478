package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLog_StartsWithBanner(t *testing.T) {
	l := New()
	assert.Equal(t, []string{Banner}, l.Lines())
	assert.Equal(t, Banner, l.Last())
}

func TestLog_AppendPreservesOrder(t *testing.T) {
	l := New()
	l.Append("Created folder: src")
	l.Appendf("Created file: %s.%s", "main", "cpp")
	l.Append("Deleted file: main.cpp")

	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []string{
		"Created folder: src",
		"Created file: main.cpp",
		"Deleted file: main.cpp",
	}, l.Since(1))
	assert.Equal(t, []string{"Deleted file: main.cpp"}, l.Tail(1))
}

func TestLog_LinesIsACopy(t *testing.T) {
	l := New()
	l.Append("a")
	lines := l.Lines()
	lines[1] = "tampered"
	assert.Equal(t, "a", l.Last())
}

func TestLog_TailAndSinceBounds(t *testing.T) {
	l := New()
	l.Append("a")
	assert.Equal(t, []string{Banner, "a"}, l.Tail(10))
	assert.Nil(t, l.Tail(0))
	assert.Nil(t, l.Since(5))
	assert.Equal(t, []string{Banner, "a"}, l.Since(-1))
}

func TestLog_Clear(t *testing.T) {
	l := New()
	l.Append("a")
	l.Append("b")
	l.Clear()
	assert.Equal(t, []string{Banner}, l.Lines())
}

func TestLog_Mirror(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(WithMirror(zap.New(core)))
	l.Append("Created folder: src")

	entries := logs.FilterMessage("terminal").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "Created folder: src", entries[0].ContextMap()["line"])
	}
}
