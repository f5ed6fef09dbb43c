package cli

import (
	"bytes"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grovetools/launcher/errors"
)

func TestErrorHandlerHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"daemon", errors.DaemonNotRunning("/tmp/x.sock"), "launcher daemon start"},
		{"item", errors.ItemNotFound(42), "Item 42 not found"},
		{"target", errors.InvalidTarget("nope", stderrors.New("bad scheme")), "launch:main?component="},
		{"generic", stderrors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Out: &buf, Verbose: true}
	_ = h.Handle(errors.ItemNotFound(7))
	assert.Contains(t, buf.String(), `"code": "ITEM_NOT_FOUND"`)
	assert.Nil(t, h.Handle(nil))
}
