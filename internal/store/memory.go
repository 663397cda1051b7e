// internal/store/memory.go
//
// In-memory implementation of the Store interface.
//
// Characteristics:
//   - Sessions are keyed by ID in a map guarded by an RWMutex.
//   - Each session has its own mutex: mutations of one session run one at a
//     time, different sessions proceed in parallel.
//   - After every successful Update the new snapshot is fanned out to
//     watchers. Watcher channels are buffered; a full channel drops the
//     older pending snapshot so play never blocks on a slow watcher.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/robalobadob/connections/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Store defines the session registry used by the HTTP layer.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *game.Session) error

	// Snapshot returns the current view of a session.
	Snapshot(ctx context.Context, id string) (game.Snapshot, error)

	// Update runs fn with exclusive access to the session and returns the
	// resulting snapshot. If fn returns an error the snapshot is still
	// returned (reflecting whatever fn left behind) but watchers are not
	// notified.
	Update(ctx context.Context, id string, fn func(*game.Session) error) (game.Snapshot, error)

	// Watch streams snapshots of a session until ctx is done.
	// The current snapshot is delivered first.
	Watch(ctx context.Context, id string) (<-chan game.Snapshot, error)
}

// entry pairs a session with its lock and watchers.
type entry struct {
	mu       sync.Mutex
	sess     *game.Session
	watchers map[chan game.Snapshot]struct{}
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex      // guards sessions map
	sessions map[string]*entry // keyed by Session.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*entry)}
}

func (m *memory) get(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Save adds or replaces the session. Existing watchers stay attached and
// receive the replacement's snapshot.
func (m *memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	e, ok := m.sessions[s.ID]
	if !ok {
		e = &entry{watchers: make(map[chan game.Snapshot]struct{})}
		m.sessions[s.ID] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess = s
	e.publish(s.Snapshot())
	return nil
}

func (m *memory) Snapshot(ctx context.Context, id string) (game.Snapshot, error) {
	e, err := m.get(id)
	if err != nil {
		return game.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Snapshot(), nil
}

func (m *memory) Update(ctx context.Context, id string, fn func(*game.Session) error) (game.Snapshot, error) {
	e, err := m.get(id)
	if err != nil {
		return game.Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return e.sess.Snapshot(), err
	}
	if err := fn(e.sess); err != nil {
		return e.sess.Snapshot(), err
	}
	snap := e.sess.Snapshot()
	e.publish(snap)
	return snap, nil
}

func (m *memory) Watch(ctx context.Context, id string) (<-chan game.Snapshot, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}
	ch := make(chan game.Snapshot, 4)

	e.mu.Lock()
	e.watchers[ch] = struct{}{}
	ch <- e.sess.Snapshot()
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.watchers, ch)
		close(ch)
		e.mu.Unlock()
	}()
	return ch, nil
}

// publish delivers snap to every watcher. Callers hold e.mu.
func (e *entry) publish(snap game.Snapshot) {
	for ch := range e.watchers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot to make room
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
