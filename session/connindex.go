package session

import (
	"net"
	"sync"
)

// connIndex maps a live control connection to its pending/established
// member, bridging the gap between "connection accepted" and "HELLO
// assigned an id" without requiring the membership table itself to know
// about net.Conn.
type connIndex struct {
	mu      sync.Mutex
	byConn  map[net.Conn]*Member
}

func newConnIndex() connIndex {
	return connIndex{byConn: make(map[net.Conn]*Member)}
}

func (c *connIndex) get(conn net.Conn) *Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byConn[conn]
}

func (c *connIndex) put(conn net.Conn, m *Member) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byConn[conn] = m
}

func (c *connIndex) pop(conn net.Conn) *Member {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.byConn[conn]
	delete(c.byConn, conn)
	return m
}
