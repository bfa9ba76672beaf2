package main

import (
	"errors"
	"time"
)

var (
	errAlreadyInRoom = errors.New("client is already in a room")
	errNotInRoom     = errors.New("client is not in a room")
	errNoSuchRoom    = errors.New("no such room")
	errRoomExists    = errors.New("room already exists")
)

// Core coordinates operations that span both registries. §5 requires that
// every such composite operation run under the server-wide write lock
// with RoomRegistry's lock nested inside it — a fixed lock order
// (ClientRegistry before RoomRegistry) is what keeps that safe. Every
// method here that touches room membership takes both locks in that
// order; MarkAwaitingPong changes only client fields and takes
// ClientRegistry's lock alone.
type Core struct {
	Clients *ClientRegistry
	Rooms   *RoomRegistry
}

func newCore(cfg *Config) *Core {
	return &Core{
		Clients: newClientRegistry(cfg.HistoryCapacity, cfg.MaxMuteList),
		Rooms:   newRoomRegistry(cfg.RoomBuckets, cfg.HistoryCapacity),
	}
}

// CreateRoom makes a new room and immediately joins c to it (§4.5, R1).
func (co *Core) CreateRoom(c *Client, name string) (*Room, error) {
	co.Clients.mu.Lock()
	defer co.Clients.mu.Unlock()
	co.Rooms.mu.Lock()
	defer co.Rooms.mu.Unlock()

	if c.room != nil {
		return nil, errAlreadyInRoom
	}
	room, ok := co.Rooms.createLocked(name)
	if !ok {
		return nil, errRoomExists
	}
	co.Rooms.addMemberLocked(room, c)
	c.room = room
	return room, nil
}

// JoinRoom adds c to an existing room (§4.5, R2: a client may belong to
// at most one room).
func (co *Core) JoinRoom(c *Client, name string) (*Room, error) {
	co.Clients.mu.Lock()
	defer co.Clients.mu.Unlock()
	co.Rooms.mu.Lock()
	defer co.Rooms.mu.Unlock()

	if c.room != nil {
		return nil, errAlreadyInRoom
	}
	room := co.Rooms.findLocked(name)
	if room == nil {
		return nil, errNoSuchRoom
	}
	co.Rooms.addMemberLocked(room, c)
	c.room = room
	return room, nil
}

// LeaveRoom detaches c from its current room, deleting the room if that
// leaves it empty (§4.5).
func (co *Core) LeaveRoom(c *Client) (*Room, error) {
	co.Clients.mu.Lock()
	defer co.Clients.mu.Unlock()
	co.Rooms.mu.Lock()
	defer co.Rooms.mu.Unlock()

	return co.leaveRoomLocked(c)
}

// leaveRoomLocked is LeaveRoom's body, reusable by DestroyClient which
// already holds both locks. Caller must hold Clients.mu and Rooms.mu for
// writing.
func (co *Core) leaveRoomLocked(c *Client) (*Room, error) {
	room := c.room
	if room == nil {
		return nil, errNotInRoom
	}
	co.Rooms.removeMemberLocked(room, c)
	c.room = nil
	return room, nil
}

// KickFromRoom forcibly removes target from its room — the `kickroom`
// admin command (§4.6). Distinct from LeaveRoom only in caller intent;
// the registry-level effect is identical.
func (co *Core) KickFromRoom(target *Client) (*Room, error) {
	return co.LeaveRoom(target)
}

// DestroyClient fully removes c from the server: detaches it from any
// room, then removes it from the client registry and activity heap. Used
// by disconn, admin kick, and sweeper eviction (§4.4, §4.5, §4.7) — every
// path that ends a client's session funnels through here so the two
// registries never drift out of sync (I4).
func (co *Core) DestroyClient(c *Client) {
	co.Clients.mu.Lock()
	defer co.Clients.mu.Unlock()
	co.Rooms.mu.Lock()
	defer co.Rooms.mu.Unlock()

	if c.room != nil {
		co.Rooms.removeMemberLocked(c.room, c)
		c.room = nil
	}
	co.Clients.removeLocked(c)
}

// MarkAwaitingPong flips c into the awaiting-pong phase and records when
// the ping went out (§4.7). It does not touch last_active: a pong is not
// itself chat activity until it arrives as a valid command, which
// touch() handles separately.
func (co *Core) MarkAwaitingPong(c *Client, now time.Time) {
	co.Clients.mu.Lock()
	defer co.Clients.mu.Unlock()
	c.phase = phaseAwaitingPong
	c.lastPingSent = now
}
