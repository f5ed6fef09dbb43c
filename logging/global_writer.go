package logging

import (
	"io"
	"os"
	"sync"
)

// swapWriter forwards to a writer that can be replaced while loggers hold it.
type swapWriter struct {
	mu sync.RWMutex
	w  io.Writer
}

func (sw *swapWriter) Write(p []byte) (int, error) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.w.Write(p)
}

func (sw *swapWriter) swap(w io.Writer) io.Writer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	prev := sw.w
	sw.w = w
	return prev
}

var consoleOutput = &swapWriter{w: os.Stderr}

// SetGlobalOutput redirects the console sink of every logger and returns a
// function restoring the previous destination.
func SetGlobalOutput(w io.Writer) (restore func()) {
	prev := consoleOutput.swap(w)
	return func() { consoleOutput.swap(prev) }
}
