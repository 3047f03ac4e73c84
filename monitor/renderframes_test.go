package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_renderFrames_reversesDeepestFirstToOutermostFirst(t *testing.T) {
	frames := []StackFrame{
		{Name: "deepest"},
		{Name: "middle"},
		{Name: "outermost"},
	}
	out := renderFrames(frames, true)
	wantOrder := []string{"outermost", "middle", "deepest"}
	for i, want := range wantOrder {
		assert.Equal(t, want, out[i].Name)
	}
}

func Test_renderFrames_stripsLocalsWhenDisabled(t *testing.T) {
	frames := []StackFrame{
		{Name: "f", Locals: []LocalVariable{{Name: "x", Repr: "1"}}},
	}
	out := renderFrames(frames, false)
	assert.Empty(t, out[0].Locals)

	out = renderFrames(frames, true)
	assert.Equal(t, "x", out[0].Locals[0].Name)
}
