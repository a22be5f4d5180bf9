package console

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Gate tracks whether the console holds a live session. The zero state is
// locked; any 401 the client sees locks it again, whichever call was in
// flight. Domain data loaded before a lock stays wherever it is held, so
// a re-login resumes on warm state.
type Gate struct {
	mu     sync.Mutex
	client *Client
	open   bool
}

// NewGate wires a gate to the client's unauthorized hook.
func NewGate(client *Client) *Gate {
	g := &Gate{client: client}
	client.OnUnauthorized(g.forceLock)
	return g
}

// Unlocked reports whether a session is currently held.
func (g *Gate) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Unlock submits the master key. On success the gate opens.
func (g *Gate) Unlock(ctx context.Context, masterKey string) error {
	if strings.TrimSpace(masterKey) == "" {
		return errors.New("master key is empty")
	}
	if err := g.client.Login(ctx, masterKey); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return errors.New("invalid master key")
		}
		return err
	}
	g.mu.Lock()
	g.open = true
	g.mu.Unlock()
	return nil
}

// Lock ends the session. The server call is best effort; the gate locks
// regardless of its outcome.
func (g *Gate) Lock(ctx context.Context) {
	_ = g.client.Logout(ctx)
	g.forceLock()
}

func (g *Gate) forceLock() {
	g.mu.Lock()
	g.open = false
	g.mu.Unlock()
}
