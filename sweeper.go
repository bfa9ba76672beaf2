package main

import (
	"context"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper is the liveness state machine (§4.7): idle → awaiting-pong →
// evict. It runs as its own long-running task alongside the listener and
// its workers (§5).
type Sweeper struct {
	core *Core
	send sendFunc
	log  zerolog.Logger

	inactivityThreshold time.Duration
	pingTimeout         time.Duration
	interval            time.Duration

	onEviction func()
}

func newSweeper(core *Core, send sendFunc, log zerolog.Logger, inactivityThreshold, pingTimeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		core:                core,
		send:                send,
		log:                 log,
		inactivityThreshold: inactivityThreshold,
		pingTimeout:         pingTimeout,
		interval:            interval,
	}
}

func (s *Sweeper) sendTo(target netip.AddrPort, data []byte) {
	if err := s.send(target, data); err != nil {
		s.log.Warn().Err(err).Str("addr", target.String()).Msg("sweeper send failed, dropping")
	}
}

// Run blocks until ctx is canceled. Each pass peeks the activity heap
// (§4.3) and either sleeps until the stalest client is due for attention,
// pings it, or evicts it — never holding the registry lock across the
// sleep (§5's suspension-point rule).
func (s *Sweeper) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	now := time.Now()
	snap, ok := s.core.Clients.peekStalest()
	if !ok {
		s.sleep(ctx, s.interval)
		return
	}

	idle := now.Sub(snap.lastActive)
	if idle < s.inactivityThreshold {
		s.sleep(ctx, capDuration(s.inactivityThreshold-idle, s.interval))
		return
	}

	if snap.phase == phaseIdle {
		if c := s.core.Clients.findByAddr(snap.addr); c != nil {
			s.core.MarkAwaitingPong(c, now)
			s.sendTo(snap.addr, buildDatagram(channelGlobal, "ping$"))
		}
		s.sleep(ctx, s.interval)
		return
	}

	if now.Sub(snap.lastPingSent) >= s.pingTimeout {
		s.evict(snap)
		return // re-peek immediately; another client may also be due.
	}

	s.sleep(ctx, capDuration(s.pingTimeout-now.Sub(snap.lastPingSent), s.interval))
}

func (s *Sweeper) evict(snap staleSnapshot) {
	c := s.core.Clients.findByAddr(snap.addr)
	if c == nil {
		return // already gone via a racing disconn/kick; nothing to do.
	}
	s.core.DestroyClient(c)
	s.sendTo(snap.addr, serverReply("Disconnected due to inactivity."))
	for _, t := range s.core.Clients.fanoutTargets("", "") {
		s.sendTo(t.addr, serverReply("%s was disconnected due to inactivity", snap.name))
	}
	s.log.Info().Str("name", snap.name).Str("addr", snap.addr.String()).Msg("evicted for inactivity")
	if s.onEviction != nil {
		s.onEviction()
	}
}

func (s *Sweeper) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	if d < 0 {
		return 0
	}
	return d
}
