package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestSweeper(inactivity, pingTimeout, interval time.Duration) (*Sweeper, *Core, *fakeSender) {
	core := newTestCore()
	fs := &fakeSender{}
	s := newSweeper(core, fs.send, zerolog.Nop(), inactivity, pingTimeout, interval)
	return s, core, fs
}

func TestCapDuration(t *testing.T) {
	if got := capDuration(5*time.Second, time.Second); got != time.Second {
		t.Errorf("capDuration(5s, 1s) = %v, want 1s", got)
	}
	if got := capDuration(-time.Second, time.Second); got != 0 {
		t.Errorf("capDuration(-1s, 1s) = %v, want 0", got)
	}
	if got := capDuration(500*time.Millisecond, time.Second); got != 500*time.Millisecond {
		t.Errorf("capDuration(500ms, 1s) = %v, want 500ms", got)
	}
}

func TestSweeperTickPingsIdleClient(t *testing.T) {
	s, core, fs := newTestSweeper(0, 10*time.Second, 50*time.Millisecond)
	c := core.Clients.add(addrN(1), "alice", time.Now().Add(-time.Minute))

	s.tick(context.Background())

	if c.phase != phaseAwaitingPong {
		t.Error("tick should mark an overdue idle client as awaiting-pong")
	}
	got := fs.to(addrN(1))
	if len(got) != 1 || got[0] != "ping$" {
		t.Errorf("got %v, want a ping$ datagram", got)
	}
}

func TestSweeperTickEvictsAfterPingTimeout(t *testing.T) {
	s, core, fs := newTestSweeper(0, 0, 50*time.Millisecond)
	c := core.Clients.add(addrN(1), "alice", time.Now().Add(-time.Minute))
	c.phase = phaseAwaitingPong
	c.lastPingSent = time.Now().Add(-time.Minute)

	s.tick(context.Background())

	if core.Clients.findByName("alice") != nil {
		t.Error("client should be evicted once ping timeout has elapsed")
	}
	got := fs.to(addrN(1))
	if len(got) != 1 || got[0] != "[Server] Disconnected due to inactivity." {
		t.Errorf("got %v", got)
	}
}

func TestSweeperTickEvictionBroadcastsToOthers(t *testing.T) {
	s, core, fs := newTestSweeper(0, 0, 50*time.Millisecond)
	stale := core.Clients.add(addrN(1), "alice", time.Now().Add(-time.Minute))
	stale.phase = phaseAwaitingPong
	stale.lastPingSent = time.Now().Add(-time.Minute)
	core.Clients.add(addrN(2), "bob", time.Now())

	s.tick(context.Background())

	got := fs.to(addrN(2))
	if len(got) != 1 || got[0] != "[Server] alice was disconnected due to inactivity" {
		t.Errorf("got %v, want bob notified of alice's eviction", got)
	}
}

func TestSweeperTickSleepsWhenNoClientsDue(t *testing.T) {
	s, _, fs := newTestSweeper(time.Hour, 10*time.Second, 20*time.Millisecond)
	s.core.Clients.add(addrN(1), "alice", time.Now())

	start := time.Now()
	s.tick(context.Background())
	elapsed := time.Since(start)

	if elapsed < 15*time.Millisecond {
		t.Errorf("tick returned too quickly (%v) for a fresh client under a long threshold", elapsed)
	}
	if len(fs.sent) != 0 {
		t.Error("no datagram should be sent while every client is fresh")
	}
}

func TestSweeperTickEmptyRegistrySleepsInterval(t *testing.T) {
	s, _, _ := newTestSweeper(time.Hour, 10*time.Second, 20*time.Millisecond)

	start := time.Now()
	s.tick(context.Background())
	elapsed := time.Since(start)

	if elapsed < 15*time.Millisecond {
		t.Errorf("tick on an empty registry returned too quickly (%v)", elapsed)
	}
}

func TestSweeperRunStopsOnContextCancel(t *testing.T) {
	s, _, _ := newTestSweeper(time.Hour, 10*time.Second, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return promptly after context cancellation")
	}
}

func TestSweeperEvictIgnoresAlreadyGoneClient(t *testing.T) {
	s, core, fs := newTestSweeper(0, 0, 50*time.Millisecond)
	snap := staleSnapshot{addr: addrN(1), name: "ghost"}

	s.evict(snap)

	if len(fs.sent) != 0 {
		t.Error("evict of an address no longer registered should send nothing")
	}
	_ = core
}
