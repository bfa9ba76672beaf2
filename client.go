package main

import (
	"net/netip"
	"sync"
	"time"
)

// livenessPhase is a client's position in the sweeper's ping state machine
// (§3, §4.7).
type livenessPhase int

const (
	phaseIdle livenessPhase = iota
	phaseAwaitingPong
)

// Client is an active chat participant, identified by a unique display
// name and a unique (IPv4, port) pair (§3).
type Client struct {
	Name string
	Addr netip.AddrPort

	// mutes is the ordered sequence of names this client has muted, up to
	// maxMuteList entries, no duplicates (§3, §4.4).
	mutes []string

	// room is the non-owning back-reference to the client's current room,
	// or nil. Mutually consistent with that room's member set (I4).
	room *Room

	lastActive   time.Time
	phase        livenessPhase
	lastPingSent time.Time

	// heapIndex is this client's slot in the activity heap, or -1 if not
	// currently in the heap (I5).
	heapIndex int

	// reqID is a slot for a log correlation ID (SPEC_FULL §3). Nothing in
	// the package assigns it: each worker's correlation ID is passed to
	// Dispatch and attached to that call's logger instead. It carries no
	// protocol weight.
	reqID string
}

// isAdmin reports whether this client's source port marks it as admin
// (§4.6). Insecure by design — see spec.md §9.
func (c *Client) isAdmin() bool {
	return c.Addr.Port() == adminPort
}

// ClientRegistry is the server-wide set of active clients, plus the
// activity heap and the one global history ring — all three are protected
// by the same RWMutex, exactly as §5 requires ("client registry, every
// client record it contains, the activity heap, and the global history
// ring are protected by a single server-wide readers/writer lock").
type ClientRegistry struct {
	mu sync.RWMutex

	byName map[string]*Client
	byAddr map[netip.AddrPort]*Client

	heap    *activityHeap
	history *historyRing

	maxMuteList int
}

func newClientRegistry(historyCapacity, maxMuteList int) *ClientRegistry {
	return &ClientRegistry{
		byName:      make(map[string]*Client),
		byAddr:      make(map[netip.AddrPort]*Client),
		heap:        newActivityHeap(),
		history:     newHistoryRing(historyCapacity),
		maxMuteList: maxMuteList,
	}
}

// add registers a new client if name and address are both free (I1, I2,
// I3). Returns the new Client, or nil if either is already taken.
func (r *ClientRegistry) add(addr netip.AddrPort, name string, now time.Time) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return nil
	}
	if _, taken := r.byName[name]; taken {
		return nil
	}
	if _, taken := r.byAddr[addr]; taken {
		return nil
	}

	c := &Client{
		Name:       name,
		Addr:       addr,
		lastActive: now,
		heapIndex:  -1,
	}
	r.byName[name] = c
	r.byAddr[addr] = c
	r.heap.push(c)
	return c
}

// findByName returns the unique client with that name, or nil.
func (r *ClientRegistry) findByName(name string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// findByAddr returns the unique client at that address, or nil.
func (r *ClientRegistry) findByAddr(addr netip.AddrPort) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byAddr[addr]
}

// removeLocked detaches c from the by-name/by-address maps and the
// activity heap. It does NOT touch c.room — callers that need full
// destruction (including room detachment) must do that themselves while
// still holding the write lock; see Core.DestroyClient.
//
// Caller must hold r.mu for writing.
func (r *ClientRegistry) removeLocked(c *Client) {
	delete(r.byName, c.Name)
	delete(r.byAddr, c.Addr)
	r.heap.remove(c)
}

// rename updates a client's name iff newName is unused and an entry with
// that address exists. Returns true on success. Room membership (keyed by
// address in room.go, not by name) needs no update here — that's the
// point of keying it that way.
func (r *ClientRegistry) rename(addr netip.AddrPort, newName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byAddr[addr]
	if !ok {
		return false
	}
	if _, taken := r.byName[newName]; taken {
		return false
	}
	delete(r.byName, c.Name)
	c.Name = newName
	r.byName[newName] = c
	return true
}

// touch marks c as having produced valid activity: bumps last_active to
// now, clears awaiting-pong, and reheapifies (§4.6, "before every command
// other than conn$").
func (r *ClientRegistry) touch(c *Client, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.lastActive = now
	c.phase = phaseIdle
	r.heap.update(c)
}

// mute appends target to requester's mute list if not already present and
// the list isn't full (§4.4, cap maxMuteList).
func (r *ClientRegistry) mute(requester *Client, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(requester.mutes) >= r.maxMuteList {
		return false
	}
	for _, m := range requester.mutes {
		if m == target {
			return false
		}
	}
	requester.mutes = append(requester.mutes, target)
	return true
}

// unmute removes target from requester's mute list if present, compacting
// the slice in place (§4.4).
func (r *ClientRegistry) unmute(requester *Client, target string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range requester.mutes {
		if m == target {
			requester.mutes = append(requester.mutes[:i], requester.mutes[i+1:]...)
			return true
		}
	}
	return false
}

// isMuted reports whether receiver has muted senderName (§4.4).
func (r *ClientRegistry) isMuted(receiver *Client, senderName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range receiver.mutes {
		if m == senderName {
			return true
		}
	}
	return false
}

// staleSnapshot is a lock-free copy of the fields the liveness sweeper
// needs to decide its next move (§4.7). The sweeper must never hold
// ClientRegistry's lock across its sleep, so it works from a snapshot
// instead of the live *Client.
type staleSnapshot struct {
	addr         netip.AddrPort
	name         string
	lastActive   time.Time
	phase        livenessPhase
	lastPingSent time.Time
}

// peekStalest returns a snapshot of the client with the oldest
// last-activity timestamp, or ok=false if no client is registered.
func (r *ClientRegistry) peekStalest() (staleSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.heap.peek()
	if c == nil {
		return staleSnapshot{}, false
	}
	return staleSnapshot{
		addr:         c.Addr,
		name:         c.Name,
		lastActive:   c.lastActive,
		phase:        c.phase,
		lastPingSent: c.lastPingSent,
	}, true
}

// currentRoom returns c's current room, or nil. Reading c.room without
// going through the registry's lock would race with Core's composite
// room operations, which mutate it under this same mutex.
func (r *ClientRegistry) currentRoom(c *Client) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return c.room
}

// count returns the number of active clients.
func (r *ClientRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// names returns a snapshot of active display names, in no particular
// order. Used by the `who` EXPANSION command.
func (r *ClientRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	return out
}

// appendGlobalHistory records text in the global history ring.
func (r *ClientRegistry) appendGlobalHistory(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.append(text)
}

// globalHistory returns a snapshot of the global history ring, oldest
// first.
func (r *ClientRegistry) globalHistory() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.history.iterate()
}

// broadcastTarget is a snapshot of one client's address, taken under the
// registry's read lock so the send itself can happen lock-free (§5,
// "a worker holds no lock across send calls it wants to avoid").
type broadcastTarget struct {
	name string
	addr netip.AddrPort
}

// fanoutTargets returns every registered client except excludeName whose
// mute list does not contain senderName — the exact audience for `say`
// (§4.6, P6).
func (r *ClientRegistry) fanoutTargets(senderName, excludeName string) []broadcastTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]broadcastTarget, 0, len(r.byName))
	for name, c := range r.byName {
		if name == excludeName {
			continue
		}
		if containsName(c.mutes, senderName) {
			continue
		}
		out = append(out, broadcastTarget{name: name, addr: c.Addr})
	}
	return out
}

// snapshotHeapDepth returns the number of clients currently tracked by the
// activity heap, for metrics only.
func (r *ClientRegistry) snapshotHeapDepth() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.heap.len()
}

func containsName(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}
