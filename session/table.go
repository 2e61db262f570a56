package session

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrTableFull is returned when the membership table is at MaxPeers.
var ErrTableFull = errors.New("session: membership table full")

// ErrNotFound is returned when a lookup by id/source finds nothing.
var ErrNotFound = errors.New("session: member not found")

// Table is the server's membership table: one lock serializes every
// mutation and every snapshot-for-broadcast, so a join snapshot and its
// PEER_JOIN broadcast always see the same version of the table.
type Table struct {
	mu       sync.RWMutex
	maxPeers int
	members  map[uint32]*Member
	nextID   uint32
}

// NewTable returns an empty table bounded to maxPeers members.
func NewTable(maxPeers int) *Table {
	return &Table{
		maxPeers: maxPeers,
		members:  make(map[uint32]*Member),
		nextID:   1,
	}
}

// Add inserts a new accepted member, returning ErrTableFull if the table is
// at capacity. If m.ID is 0 the table assigns the next free id (and mirrors
// it into Source, since id == source identifier by invariant).
func (t *Table) Add(m *Member) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.members) >= t.maxPeers {
		return ErrTableFull
	}
	if m.ID == 0 {
		m.ID = t.nextID
		t.nextID++
	}
	m.Source = m.ID
	t.members[m.ID] = m
	return nil
}

// Get returns the member with the given id, if present.
func (t *Table) Get(id uint32) (*Member, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.members[id]
	return m, ok
}

// GetBySource returns the member whose source identifier matches (== id by
// invariant, exposed separately for callers keying off media frames).
func (t *Table) GetBySource(source uint32) (*Member, bool) {
	return t.Get(source)
}

// Remove deletes a member unconditionally, reporting whether it was still
// present. The control-EOF and explicit-LEAVE paths both call it, and only
// the call that finds the member goes on to broadcast PEER_LEAVE, so the
// broadcast happens once. Heartbeat timeouts remove members through
// SweepHeartbeats instead. Remove itself sends nothing.
func (t *Table) Remove(id uint32) (*Member, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.members[id]
	if !ok {
		return nil, false
	}
	delete(t.members, id)
	return m, true
}

// Snapshot returns a value-copy view of every member except excludeID,
// taken under the read lock so it reflects one consistent instant.
func (t *Table) Snapshot(excludeID uint32) []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Snapshot, 0, len(t.members))
	for id, m := range t.members {
		if id == excludeID {
			continue
		}
		out = append(out, m.Snapshot())
	}
	return out
}

// ForEachExcept invokes fn for every current member other than excludeID,
// whatever its state, under the read lock. fn must not block or re-enter the table.
func (t *Table) ForEachExcept(excludeID uint32, fn func(*Member)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for id, m := range t.members {
		if id == excludeID {
			continue
		}
		fn(m)
	}
}

// Len returns the current member count.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// SweepHeartbeats removes every member whose last heartbeat is older than
// timeout, invoking onRemove for each (used to fire PEER_LEAVE broadcasts)
// after releasing the table lock, so the callback may itself call Remove-
// adjacent broadcast logic without risking self-deadlock.
func (t *Table) SweepHeartbeats(isExpired func(*Member) bool, onRemove func(*Member)) {
	t.mu.Lock()
	var expired []*Member
	for id, m := range t.members {
		if isExpired(m) {
			expired = append(expired, m)
			delete(t.members, id)
		}
	}
	t.mu.Unlock()

	for _, m := range expired {
		logrus.WithFields(logrus.Fields{
			"function": "Table.SweepHeartbeats",
			"id":       m.ID,
		}).Info("member timed out on heartbeat")
		onRemove(m)
	}
}
