package main

import (
	"net/netip"
	"sync"
)

// Room is a named sub-channel with its own member set and its own history
// ring (§3, §4.5). Membership is exclusive: a client belongs to at most
// one room at a time (R2), enforced by ClientRegistry via Core, not by
// Room itself.
//
// members is keyed by address, not by name: a client's address is stable
// for its whole session while its name can change under it (`rename`),
// and a membership key that can go stale silently corrupts R1/R2/I4 (see
// DESIGN.md).
type Room struct {
	Name    string
	members map[netip.AddrPort]*Client
	history *historyRing
}

func newRoom(name string, historyCapacity int) *Room {
	return &Room{
		Name:    name,
		members: make(map[netip.AddrPort]*Client),
		history: newHistoryRing(historyCapacity),
	}
}

// RoomRegistry is the server-wide set of rooms, bucketed by name hash
// (§4.5). It has its own mutex, separate from ClientRegistry's — composite
// operations that touch both take ClientRegistry's lock first (see
// core.go) to keep a single fixed lock order.
type RoomRegistry struct {
	mu      sync.RWMutex
	buckets []map[string]*Room

	historyCapacity int
}

func newRoomRegistry(bucketCount, historyCapacity int) *RoomRegistry {
	if bucketCount <= 0 {
		bucketCount = 1
	}
	buckets := make([]map[string]*Room, bucketCount)
	for i := range buckets {
		buckets[i] = make(map[string]*Room)
	}
	return &RoomRegistry{buckets: buckets, historyCapacity: historyCapacity}
}

// bucket hashes name with djb2 and returns its bucket (§4.5). All buckets
// share rr.mu, so the bucketing does not reduce lock contention.
func (rr *RoomRegistry) bucket(name string) map[string]*Room {
	var h uint32 = 5381
	for i := 0; i < len(name); i++ {
		h = ((h << 5) + h) + uint32(name[i])
	}
	return rr.buckets[int(h)%len(rr.buckets)]
}

// find returns the room with that name, or nil.
func (rr *RoomRegistry) find(name string) *Room {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.bucket(name)[name]
}

// findLocked is find's lock-free counterpart for callers (Core) that
// already hold rr.mu.
func (rr *RoomRegistry) findLocked(name string) *Room {
	return rr.bucket(name)[name]
}

// createLocked inserts a new, empty room if the name is free. Returns the
// room and true on success. Caller must hold rr.mu for writing (Core
// callers take this lock themselves as part of a composite operation;
// standalone callers use create below).
func (rr *RoomRegistry) createLocked(name string) (*Room, bool) {
	b := rr.bucket(name)
	if _, exists := b[name]; exists {
		return nil, false
	}
	room := newRoom(name, rr.historyCapacity)
	b[name] = room
	return room, true
}

// create inserts a new, empty room if the name is free (R3).
func (rr *RoomRegistry) create(name string) (*Room, bool) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return rr.createLocked(name)
}

// removeIfEmptyLocked deletes room from the registry once its member set
// is empty, as R1 requires ("a room is deleted the instant its member set
// empties"). Caller must hold rr.mu for writing.
func (rr *RoomRegistry) removeIfEmptyLocked(room *Room) {
	if len(room.members) > 0 {
		return
	}
	b := rr.bucket(room.Name)
	delete(b, room.Name)
}

// addMemberLocked adds c to room's member set. Caller must hold rr.mu for
// writing and must already have verified c isn't in any room (R2).
func (rr *RoomRegistry) addMemberLocked(room *Room, c *Client) {
	room.members[c.Addr] = c
}

// removeMemberLocked removes c from room's member set and deletes the room
// if it's now empty. Caller must hold rr.mu for writing.
func (rr *RoomRegistry) removeMemberLocked(room *Room, c *Client) {
	delete(room.members, c.Addr)
	rr.removeIfEmptyLocked(room)
}

// membersLocked returns a snapshot of room's current members. Caller must
// hold rr.mu for at least reading.
func (rr *RoomRegistry) membersLocked(room *Room) []*Client {
	out := make([]*Client, 0, len(room.members))
	for _, c := range room.members {
		out = append(out, c)
	}
	return out
}

// fanoutTargetsLocked returns every member of room except excludeName
// whose mute list does not contain senderName — the audience for
// `sayroom` (§4.6). Caller must hold rr.mu for at least reading.
func (rr *RoomRegistry) fanoutTargetsLocked(room *Room, senderName, excludeName string) []broadcastTarget {
	out := make([]broadcastTarget, 0, len(room.members))
	for _, c := range room.members {
		if c.Name == excludeName {
			continue
		}
		if containsName(c.mutes, senderName) {
			continue
		}
		out = append(out, broadcastTarget{name: c.Name, addr: c.Addr})
	}
	return out
}

// appendHistory records text in room's own history ring.
func (rr *RoomRegistry) appendHistory(room *Room, text string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	room.history.append(text)
}

// historyOf returns a snapshot of room's history ring, oldest first.
func (rr *RoomRegistry) historyOf(room *Room) []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return room.history.iterate()
}

// memberNames returns a snapshot of room's current member names.
func (rr *RoomRegistry) memberNames(room *Room) []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]string, 0, len(room.members))
	for _, c := range room.members {
		out = append(out, c.Name)
	}
	return out
}

// fanoutTargets returns every member of room except excludeName whose
// mute list does not contain senderName — the audience for `sayroom`
// (§4.6).
func (rr *RoomRegistry) fanoutTargets(room *Room, senderName, excludeName string) []broadcastTarget {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.fanoutTargetsLocked(room, senderName, excludeName)
}

// names returns a snapshot of every current room name.
func (rr *RoomRegistry) names() []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	out := make([]string, 0)
	for _, b := range rr.buckets {
		for name := range b {
			out = append(out, name)
		}
	}
	return out
}

// count returns the total number of rooms across all buckets.
func (rr *RoomRegistry) count() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	n := 0
	for _, b := range rr.buckets {
		n += len(b)
	}
	return n
}
