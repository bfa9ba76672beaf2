package main

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Listener owns the UDP socket and spawns one detached worker per
// received datagram (§4.8). This is a concurrency contract, not a
// performance optimization: unbounded fan-out, no per-sender ordering
// (§5, §9) — a bounded pool would be an equally valid implementation of
// the same contract, but the detached-worker shape is what the source
// does and what the spec's ordering guarantees assume.
type Listener struct {
	ep         *Endpoint
	dispatcher *Dispatcher
	log        zerolog.Logger
	bufferSize int

	wg sync.WaitGroup
}

func newListener(ep *Endpoint, dispatcher *Dispatcher, log zerolog.Logger, bufferSize int) *Listener {
	return &Listener{ep: ep, dispatcher: dispatcher, log: log, bufferSize: bufferSize}
}

// Run blocks in the receive loop until recv fails. Canceling ctx alone
// does not stop it: closing the socket (via Close, which main calls right
// after canceling ctx) is what unblocks recv (§5's cooperative-shutdown
// rule). Run then waits for in-flight workers and returns nil if ctx was
// canceled, or the recv error otherwise.
func (l *Listener) Run(ctx context.Context) error {
	buf := make([]byte, l.bufferSize)
	for {
		n, addr, err := l.ep.recv(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				l.wg.Wait()
				return nil
			}
			l.log.Warn().Err(err).Msg("recv failed, listener stopping")
			l.wg.Wait()
			return err
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		reqID := uuid.NewString()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.dispatcher.Dispatch(addr, payload, reqID)
		}()
	}
}

// Close closes the underlying socket, unblocking Run's recv call.
func (l *Listener) Close() error {
	return l.ep.close()
}
