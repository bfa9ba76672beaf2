package main

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestMetricsWireDispatcherHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	d, _ := newTestDispatcher()
	m.wireDispatcher(d)

	d.onCommand("say")
	d.onCommand("say")
	d.onMessage()
	d.onEviction()

	if got := counterValue(t, m.messagesTotal); got != 1 {
		t.Errorf("messagesTotal = %v, want 1", got)
	}
	if got := counterValue(t, m.evictionsTotal); got != 1 {
		t.Errorf("evictionsTotal = %v, want 1", got)
	}
}

func TestMetricsWireSweeperHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	s, _, _ := newTestSweeper(time.Hour, 10*time.Second, time.Second)
	m.wireSweeper(s)

	s.onEviction()
	s.onEviction()

	if got := counterValue(t, m.evictionsTotal); got != 2 {
		t.Errorf("evictionsTotal = %v, want 2", got)
	}
}

func TestMetricsSampleUpdatesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	core := newTestCore()
	core.Clients.add(addrN(1), "alice", time.Now())
	core.Clients.add(addrN(2), "bob", time.Now())
	core.CreateRoom(core.Clients.findByName("alice"), "lobby")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.sample(ctx, core, 5*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	if got := gaugeValue(t, m.clientsGauge); got != 2 {
		t.Errorf("clientsGauge = %v, want 2", got)
	}
	if got := gaugeValue(t, m.roomsGauge); got != 1 {
		t.Errorf("roomsGauge = %v, want 1", got)
	}
	if got := gaugeValue(t, m.heapDepthGauge); got != 2 {
		t.Errorf("heapDepthGauge = %v, want 2", got)
	}
}
