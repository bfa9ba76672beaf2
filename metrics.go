package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Metrics is the observability surface's counter/gauge set (SPEC_FULL §2
// EXPANSION). It only reads the registries through the same RWMutex
// accessors the dispatcher uses, and never mutates protocol state — so it
// cannot affect P1-P8.
type Metrics struct {
	commandsTotal  *prometheus.CounterVec
	messagesTotal  prometheus.Counter
	evictionsTotal prometheus.Counter
	clientsGauge   prometheus.Gauge
	roomsGauge     prometheus.Gauge
	heapDepthGauge prometheus.Gauge
	cpuPercent     prometheus.Gauge
	memPercent     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		commandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatd_commands_total",
			Help: "Commands dispatched, by verb.",
		}, []string{"verb"}),
		messagesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chatd_messages_total",
			Help: "Chat messages relayed (say, sayto, sayroom).",
		}),
		evictionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "chatd_evictions_total",
			Help: "Clients removed (admin kick or liveness timeout).",
		}),
		clientsGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_clients",
			Help: "Currently registered clients.",
		}),
		roomsGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_rooms",
			Help: "Currently existing rooms.",
		}),
		heapDepthGauge: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_activity_heap_depth",
			Help: "Clients currently tracked by the activity heap.",
		}),
		cpuPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_host_cpu_percent",
			Help: "Host CPU utilization, sampled periodically.",
		}),
		memPercent: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatd_host_memory_percent",
			Help: "Host memory utilization, sampled periodically.",
		}),
	}
}

// wireDispatcher attaches m's counters to d's observability hooks.
func (m *Metrics) wireDispatcher(d *Dispatcher) {
	d.onCommand = func(verb string) { m.commandsTotal.WithLabelValues(verb).Inc() }
	d.onMessage = func() { m.messagesTotal.Inc() }
	d.onEviction = func() { m.evictionsTotal.Inc() }
}

// wireSweeper attaches m's eviction counter to s (kept distinct from the
// dispatcher's hook since a sweeper-driven eviction never goes through
// Dispatch).
func (m *Metrics) wireSweeper(s *Sweeper) {
	s.onEviction = func() { m.evictionsTotal.Inc() }
}

// sample snapshots the core registries and the host's CPU/memory, the way
// the teacher's own RunMetrics sampled room stats on a ticker (see
// DESIGN.md). Runs on its own ticker; takes only read locks.
func (m *Metrics) sample(ctx context.Context, core *Core, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clients := core.Clients.count()
			rooms := core.Rooms.count()
			heapDepth := core.Clients.snapshotHeapDepth()

			m.clientsGauge.Set(float64(clients))
			m.roomsGauge.Set(float64(rooms))
			m.heapDepthGauge.Set(float64(heapDepth))

			if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
				m.cpuPercent.Set(pct[0])
			}
			if vm, err := mem.VirtualMemory(); err == nil {
				m.memPercent.Set(vm.UsedPercent)
			}

			log.Debug().
				Int("clients", clients).
				Int("rooms", rooms).
				Int("heap_depth", heapDepth).
				Msg("periodic stats sample")
		}
	}
}
