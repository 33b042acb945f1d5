package auth

import (
	"sync"

	"ordering-service/internal/pkg/linktoken"
)

// CodeEntry tracks one code field. Verification fires once per extracted
// code; further keystrokes that still yield the same code do nothing.
type CodeEntry struct {
	mu   sync.Mutex
	last string
}

// Observe extracts a code from text and reports whether it should be
// verified now.
func (e *CodeEntry) Observe(text string) (code string, trigger bool, err error) {
	code, err = linktoken.Extract(text)
	if err != nil {
		return "", false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if code == e.last {
		return code, false, nil
	}
	e.last = code
	return code, true, nil
}

// Reset forgets the last code, e.g. after a new one was sent.
func (e *CodeEntry) Reset() {
	e.mu.Lock()
	e.last = ""
	e.mu.Unlock()
}
