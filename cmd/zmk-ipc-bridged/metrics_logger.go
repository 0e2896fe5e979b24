package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/zmk-ipc-bridge/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"ingress_decoded", snap.IngressDecoded,
					"ingress_dropped", snap.IngressDropped,
					"ingress_malformed", snap.IngressMalformed,
					"ingress_peers", snap.IngressPeers,
					"egress_tx", snap.EgressTx,
					"egress_evicted", snap.EgressEvicted,
					"egress_rejected", snap.EgressRejected,
					"egress_clients", snap.EgressClients,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
