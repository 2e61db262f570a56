package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddAssignsSequentialIDs(t *testing.T) {
	tbl := NewTable(4)

	m1 := &Member{}
	m2 := &Member{}
	require.NoError(t, tbl.Add(m1))
	require.NoError(t, tbl.Add(m2))

	assert.Equal(t, uint32(1), m1.ID)
	assert.Equal(t, uint32(2), m2.ID)
	assert.Equal(t, m1.ID, m1.Source)
	assert.Equal(t, m2.ID, m2.Source)
}

func TestTableAddRejectsWhenFull(t *testing.T) {
	tbl := NewTable(1)
	require.NoError(t, tbl.Add(&Member{}))

	err := tbl.Add(&Member{})
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableRemoveIsUnconditionalAndOnce(t *testing.T) {
	tbl := NewTable(4)
	m := &Member{}
	require.NoError(t, tbl.Add(m))

	_, ok := tbl.Remove(m.ID)
	assert.True(t, ok)

	_, ok = tbl.Remove(m.ID)
	assert.False(t, ok)
}

func TestTableSnapshotExcludesGivenID(t *testing.T) {
	tbl := NewTable(4)
	m1 := &Member{Name: "alice"}
	m2 := &Member{Name: "bob"}
	require.NoError(t, tbl.Add(m1))
	require.NoError(t, tbl.Add(m2))

	snap := tbl.Snapshot(m1.ID)
	require.Len(t, snap, 1)
	assert.Equal(t, "bob", snap[0].Name)
}

func TestTableForEachExceptSkipsExcluded(t *testing.T) {
	tbl := NewTable(4)
	m1 := &Member{}
	m2 := &Member{}
	require.NoError(t, tbl.Add(m1))
	require.NoError(t, tbl.Add(m2))

	var visited []uint32
	tbl.ForEachExcept(m1.ID, func(m *Member) { visited = append(visited, m.ID) })

	assert.Equal(t, []uint32{m2.ID}, visited)
}

func TestTableSweepHeartbeatsRemovesExpiredAndNotifies(t *testing.T) {
	tbl := NewTable(4)
	stale := &Member{LastHeartbeat: time.Now().Add(-time.Hour)}
	fresh := &Member{LastHeartbeat: time.Now()}
	require.NoError(t, tbl.Add(stale))
	require.NoError(t, tbl.Add(fresh))

	var removed []uint32
	tbl.SweepHeartbeats(
		func(m *Member) bool { return time.Since(m.LastHeartbeat) > time.Minute },
		func(m *Member) { removed = append(removed, m.ID) },
	)

	assert.Equal(t, []uint32{stale.ID}, removed)
	assert.Equal(t, 1, tbl.Len())
	_, ok := tbl.Get(fresh.ID)
	assert.True(t, ok)
}

func TestMemberSnapshotDerivesIPFromMediaAddr(t *testing.T) {
	m := &Member{
		ID:        7,
		Name:      "carol",
		MediaAddr: &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 6001},
	}
	snap := m.Snapshot()
	assert.Equal(t, "10.0.0.5", snap.IP)
	assert.Equal(t, uint16(6001), snap.UDPPort)
}
