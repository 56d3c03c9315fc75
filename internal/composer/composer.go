package composer

import (
	"context"
	"strings"
	"sync"
)

// PersistFunc receives the trimmed text of an accepted submission.
type PersistFunc func(ctx context.Context, text string) error

// Composer holds the pending input of a message box.
type Composer struct {
	mu      sync.Mutex
	draft   string
	persist PersistFunc
}

func New(persist PersistFunc) *Composer {
	return &Composer{persist: persist}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// CanSubmit is false for blank or whitespace-only drafts.
func (c *Composer) CanSubmit() bool {
	return strings.TrimSpace(c.Draft()) != ""
}

// Submit hands the trimmed draft to the persist function and clears the
// field. Blank drafts are ignored: submitted is false and nothing is
// called. The field is cleared even when persisting fails.
func (c *Composer) Submit(ctx context.Context) (submitted bool, err error) {
	c.mu.Lock()
	text := strings.TrimSpace(c.draft)
	if text == "" {
		c.mu.Unlock()
		return false, nil
	}
	c.draft = ""
	c.mu.Unlock()

	return true, c.persist(ctx, text)
}

// SubmitText is SetDraft followed by Submit.
func (c *Composer) SubmitText(ctx context.Context, text string) (bool, error) {
	c.SetDraft(text)
	return c.Submit(ctx)
}
