package ranking

import (
	"fmt"
	"strings"
)

// SetAnnotation stores text for id. Only that item changes.
func (l *List) SetAnnotation(id, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return fmt.Errorf("annotate %q: %w", id, ErrLocked)
	}
	for i := range l.entries {
		if l.entries[i].candidate.ID == id {
			l.entries[i].annotation = text
			return nil
		}
	}
	return fmt.Errorf("annotate %q: %w", id, ErrUnknownCandidate)
}

// Annotation returns the text stored for id.
func (l *List) Annotation(id string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if e.candidate.ID == id {
			return e.annotation, true
		}
	}
	return "", false
}

// Incomplete returns, in rank order, the ids whose annotation is empty or
// whitespace only.
func (l *List) Incomplete() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for _, e := range l.entries {
		if strings.TrimSpace(e.annotation) == "" {
			out = append(out, e.candidate.ID)
		}
	}
	return out
}

// Complete reports whether every item carries a non-blank annotation.
func (l *List) Complete() bool {
	return len(l.Incomplete()) == 0
}
