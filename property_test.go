package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// P1: ClientRegistry never holds two clients under the same name.
func TestPropertyUniqueClientNames(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newClientRegistry(15, 16)
		names := rapid.SliceOfN(rapid.StringMatching(`[a-e]`), 1, 40).Draw(rt, "names")
		now := time.Now()

		seen := map[string]bool{}
		for i, name := range names {
			c := r.add(addrN(uint16(i+1)), name, now)
			if seen[name] {
				assert.Nil(rt, c, "add() of an already-used name must fail")
			} else if c != nil {
				seen[name] = true
			}
		}

		byName := map[string]bool{}
		for _, n := range r.names() {
			assert.False(rt, byName[n], "registry must not contain duplicate names")
			byName[n] = true
		}
	})
}

// P2: ClientRegistry never holds two clients under the same address.
func TestPropertyUniqueClientAddrs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newClientRegistry(15, 16)
		ports := rapid.SliceOfN(rapid.Uint16Range(1, 10), 1, 40).Draw(rt, "ports")
		now := time.Now()

		for i, p := range ports {
			name := rapid.StringMatching(`[a-z]{3,8}`).Draw(rt, "name")
			c := r.add(addrN(p), name+string(rune('a'+i%26)), now)
			if c != nil {
				assert.Equal(rt, p, c.Addr.Port())
			}
		}

		seenAddr := map[uint16]bool{}
		for _, p := range ports {
			a := addrN(p)
			if c := r.findByAddr(a); c != nil {
				assert.False(rt, seenAddr[p], "registry must not contain duplicate addresses")
				seenAddr[p] = true
			}
		}
	})
}

// P3: the activity heap's back-references stay correct, and it remains a
// valid min-heap, after any sequence of push/update/remove.
func TestPropertyActivityHeapInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newActivityHeap()
		var live []*Client
		base := time.Unix(1_700_000_000, 0)

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 60).Draw(rt, "ops")
		for i, op := range ops {
			switch {
			case op == 0 || len(live) == 0:
				c := &Client{Name: "c", lastActive: base.Add(time.Duration(i) * time.Second), heapIndex: -1}
				h.push(c)
				live = append(live, c)
			case op == 1:
				idx := rapid.IntRange(0, len(live)-1).Draw(rt, "idx")
				live[idx].lastActive = live[idx].lastActive.Add(time.Duration(rapid.IntRange(-1000, 1000).Draw(rt, "delta")) * time.Second)
				h.update(live[idx])
			default:
				idx := rapid.IntRange(0, len(live)-1).Draw(rt, "idx")
				h.remove(live[idx])
				live = append(live[:idx], live[idx+1:]...)
			}
		}

		assert.Equal(rt, len(live), h.len())
		for idx, c := range h.items {
			assert.Equal(rt, idx, c.heapIndex, "heapIndex must track the client's actual slot")
			if idx == 0 {
				continue
			}
			parent := (idx - 1) / 2
			assert.False(rt, h.items[idx].lastActive.Before(h.items[parent].lastActive),
				"min-heap property violated")
		}
	})
}

// P4: after any sequence of create/join/leave, every client's current
// room lists that client among its members.
func TestPropertyRoomMembershipConsistency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		co := newTestCore()
		clientNames := []string{"alice", "bob", "carol", "dave"}
		roomNames := []string{"r1", "r2"}
		for i, n := range clientNames {
			co.Clients.add(addrN(uint16(i+1)), n, time.Now())
		}

		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 60).Draw(rt, "ops")
		for _, op := range ops {
			name := clientNames[rapid.IntRange(0, len(clientNames)-1).Draw(rt, "client")]
			c := co.Clients.findByName(name)
			if c == nil {
				continue
			}
			room := roomNames[rapid.IntRange(0, len(roomNames)-1).Draw(rt, "room")]
			switch op {
			case 0:
				co.CreateRoom(c, room+name)
			case 1:
				co.JoinRoom(c, room)
			default:
				co.LeaveRoom(c)
			}
		}

		for _, n := range clientNames {
			c := co.Clients.findByName(n)
			if c == nil {
				continue
			}
			r := co.Clients.currentRoom(c)
			if r == nil {
				continue
			}
			members := co.Rooms.memberNames(r)
			found := false
			for _, m := range members {
				if m == n {
					found = true
				}
			}
			assert.True(rt, found, "client's own room must list it as a member")
		}
	})
}

// P5: a history ring never holds more than its configured capacity, and
// always reflects the most recent N appends in order.
func TestPropertyHistoryRingBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(1, 8).Draw(rt, "capacity")
		r := newHistoryRing(capacity)

		n := rapid.IntRange(0, 40).Draw(rt, "n")
		var all []string
		for i := 0; i < n; i++ {
			line := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "line")
			r.append(line)
			all = append(all, line)
		}

		assert.LessOrEqual(rt, r.len(), capacity)
		got := r.iterate()
		want := all
		if len(want) > capacity {
			want = want[len(want)-capacity:]
		}
		assert.Equal(rt, want, got)
	})
}

// P7: touch() always advances last_active to the supplied timestamp and
// keeps the heap consistent with it.
func TestPropertyTouchAdvancesActivity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := newClientRegistry(15, 16)
		base := time.Now()
		c := r.add(addrN(1), "alice", base)
		if c == nil {
			rt.Fatal("setup: add() should have succeeded")
		}

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		last := base
		for i := 0; i < steps; i++ {
			last = last.Add(time.Duration(rapid.IntRange(1, 1000).Draw(rt, "delta")) * time.Second)
			r.touch(c, last)
			assert.True(rt, c.lastActive.Equal(last))
			assert.Equal(rt, phaseIdle, c.phase)
		}
	})
}
