// Package identity captures the free-text display name a participant
// chats under. Names are not verified, reserved or remembered.
package identity

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrBlankName         = errors.New("name must not be blank")
	ErrAlreadyIdentified = errors.New("already identified")
	ErrUnidentified      = errors.New("not identified")
)

type State int

const (
	Unidentified State = iota
	Identified
)

func (s State) String() string {
	if s == Identified {
		return "identified"
	}
	return "unidentified"
}

// Gate moves from Unidentified to Identified once per session.
type Gate struct {
	mu   sync.RWMutex
	name string
}

// Submit accepts the trimmed name. Identified is terminal.
func (g *Gate) Submit(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrBlankName
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.name != "" {
		return "", ErrAlreadyIdentified
	}
	g.name = name
	return name, nil
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.name == "" {
		return Unidentified
	}
	return Identified
}

// Name returns the accepted name, or ErrUnidentified.
func (g *Gate) Name() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.name == "" {
		return "", ErrUnidentified
	}
	return g.name, nil
}
