package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/zmk-ipc-bridge/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	IngressFramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingress_frames_decoded_total",
		Help: "Total client messages successfully decoded from the ingress socket.",
	})
	IngressFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingress_frames_dropped_total",
		Help: "Total ingress frames dropped (oversize, dispatch rejected).",
	})
	IngressFramesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingress_frames_malformed_total",
		Help: "Total ingress frames rejected by the wire codec (truncated, invalid tag).",
	})
	IngressPeersServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingress_peers_served_total",
		Help: "Total distinct peer connections accepted on the ingress socket.",
	})
	EgressFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "egress_frames_sent_total",
		Help: "Total frames successfully written to egress clients.",
	})
	EgressClientsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "egress_clients_evicted_total",
		Help: "Total egress clients evicted after a failed or timed-out write.",
	})
	EgressClientsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "egress_clients_rejected_total",
		Help: "Total egress connection attempts rejected because the table was at capacity.",
	})
	EgressActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "egress_active_clients",
		Help: "Current number of connected egress observers.",
	})
	EgressBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "egress_broadcast_fanout",
		Help: "Number of clients targeted in the most recent broadcast.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrIngressListen = "ingress_listen"
	ErrIngressAccept = "ingress_accept"
	ErrIngressRead   = "ingress_read"
	ErrEgressListen  = "egress_listen"
	ErrEgressAccept  = "egress_accept"
)

// StartHTTP serves Prometheus metrics and a readiness probe on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read for status logging without going
// through the Prometheus registry.
var (
	localIngressDecoded   uint64
	localIngressDropped   uint64
	localIngressMalformed uint64
	localIngressPeers     uint64
	localEgressTx         uint64
	localEgressEvicted    uint64
	localEgressRejected   uint64
	localEgressClients    uint64
	localFanout           uint64
	localErrors           uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	IngressDecoded   uint64
	IngressDropped   uint64
	IngressMalformed uint64
	IngressPeers     uint64
	EgressTx         uint64
	EgressEvicted    uint64
	EgressRejected   uint64
	EgressClients    uint64
	Fanout           uint64
	Errors           uint64
}

func Snap() Snapshot {
	return Snapshot{
		IngressDecoded:   atomic.LoadUint64(&localIngressDecoded),
		IngressDropped:   atomic.LoadUint64(&localIngressDropped),
		IngressMalformed: atomic.LoadUint64(&localIngressMalformed),
		IngressPeers:     atomic.LoadUint64(&localIngressPeers),
		EgressTx:         atomic.LoadUint64(&localEgressTx),
		EgressEvicted:    atomic.LoadUint64(&localEgressEvicted),
		EgressRejected:   atomic.LoadUint64(&localEgressRejected),
		EgressClients:    atomic.LoadUint64(&localEgressClients),
		Fanout:           atomic.LoadUint64(&localFanout),
		Errors:           atomic.LoadUint64(&localErrors),
	}
}

func IncIngressDecoded() {
	IngressFramesDecoded.Inc()
	atomic.AddUint64(&localIngressDecoded, 1)
}

func IncIngressDropped() {
	IngressFramesDropped.Inc()
	atomic.AddUint64(&localIngressDropped, 1)
}

func IncIngressMalformed() {
	IngressFramesMalformed.Inc()
	atomic.AddUint64(&localIngressMalformed, 1)
}

func IncIngressPeer() {
	IngressPeersServed.Inc()
	atomic.AddUint64(&localIngressPeers, 1)
}

func AddEgressTx(n int) {
	EgressFramesSent.Add(float64(n))
	atomic.AddUint64(&localEgressTx, uint64(n))
}

func IncEgressEvicted() {
	EgressClientsEvicted.Inc()
	atomic.AddUint64(&localEgressEvicted, 1)
}

func IncEgressRejected() {
	EgressClientsRejected.Inc()
	atomic.AddUint64(&localEgressRejected, 1)
}

func SetEgressClients(n int) {
	EgressActiveClients.Set(float64(n))
	atomic.StoreUint64(&localEgressClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	EgressBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first real error doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrIngressListen, ErrIngressAccept, ErrIngressRead,
		ErrEgressListen, ErrEgressAccept,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // not set yet: treat as ready so the metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
