// Package registry holds the bounded set of admitted equipment connections:
// a map from two-digit equipment ID to its send handle, plus the pool of
// IDs not currently in use. Every operation that observes or mutates either
// is taken under a single lock, so admission, removal, and broadcast are
// never interleaved with each other.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sandia-emesh/equipmesh/internal/wire"
	"github.com/sandia-emesh/equipmesh/pkg/eqlog"
)

// ErrFull is returned by Admit when every ID in the configured range is
// already assigned.
var ErrFull = errors.New("registry: equipment limit exceeded")

// ErrNotFound is returned by Release and Lookup for an ID that isn't
// currently registered.
var ErrNotFound = errors.New("registry: equipment not found")

// Conn is the minimal send handle the registry needs for each admitted
// equipment connection. *transport.Conn satisfies this.
type Conn interface {
	WriteMessage(wire.Message) error
	Close() error
}

// Registry tracks admitted equipment connections and the free two-digit ID
// pool. The zero value is not usable; construct one with New.
type Registry struct {
	mu   sync.Mutex
	conn map[wire.EquipmentID]Conn
	free []wire.EquipmentID // FIFO: starts in ascending order; released ids join the tail

	max int
	log *eqlog.Logger
}

// New creates a Registry whose ID space is "01".."max" (max capped to 99,
// the width of the two-digit ID encoding).
func New(max int, log *eqlog.Logger) *Registry {
	if max > 99 {
		max = 99
	}
	if max < 1 {
		max = 1
	}

	free := make([]wire.EquipmentID, 0, max)
	for i := 1; i <= max; i++ {
		free = append(free, wire.EquipmentID(fmt.Sprintf("%02d", i)))
	}

	return &Registry{
		conn: make(map[wire.EquipmentID]Conn),
		free: free,
		max:  max,
		log:  log,
	}
}

// Max returns the configured equipment limit.
func (r *Registry) Max() int { return r.max }

// Admit assigns the ID at the head of the free pool to conn and returns it:
// the lowest-numbered ID until any are released, and after that the ID that
// has been free the longest. It returns ErrFull if the registry is already
// at capacity.
func (r *Registry) Admit(conn Conn) (wire.EquipmentID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.free) == 0 {
		return "", ErrFull
	}

	id := r.free[0]
	r.free = r.free[1:]
	r.conn[id] = conn

	r.log.Debug("admitted equipment %s (%d/%d in use)", id, len(r.conn), r.max)

	return id, nil
}

// Release returns id to the free pool and removes its connection handle.
// Releasing an ID that isn't registered is a no-op that returns ErrNotFound,
// so a worker's cleanup path can call Release unconditionally and
// idempotently without tracking whether it already ran.
func (r *Registry) Release(id wire.EquipmentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conn[id]; !ok {
		return ErrNotFound
	}

	delete(r.conn, id)
	r.free = append(r.free, id)

	r.log.Debug("released equipment %s (%d/%d in use)", id, len(r.conn), r.max)

	return nil
}

// Lookup returns the send handle registered for id.
func (r *Registry) Lookup(id wire.EquipmentID) (Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conn[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Count returns the number of currently admitted equipment connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.conn)
}

// Snapshot returns the currently registered IDs in ascending order. The
// slice is a copy; callers may keep or mutate it freely.
func (r *Registry) Snapshot() []wire.EquipmentID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]wire.EquipmentID, 0, len(r.conn))
	for id := range r.conn {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Broadcast sends m to every registered equipment except excluding (pass ""
// to exclude none). It returns the IDs it failed to deliver to; a write
// failure does not remove the target from the registry, since that's the
// owning worker's job once its own read loop notices the disconnect.
func (r *Registry) Broadcast(m wire.Message, excluding wire.EquipmentID) []wire.EquipmentID {
	r.mu.Lock()
	targets := make(map[wire.EquipmentID]Conn, len(r.conn))
	for id, c := range r.conn {
		if id == excluding {
			continue
		}
		targets[id] = c
	}
	r.mu.Unlock()

	var failed []wire.EquipmentID
	for id, c := range targets {
		if err := c.WriteMessage(m); err != nil {
			r.log.Warn("broadcast to %s failed: %v", id, err)
			failed = append(failed, id)
		}
	}
	return failed
}

func sortIDs(ids []wire.EquipmentID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
