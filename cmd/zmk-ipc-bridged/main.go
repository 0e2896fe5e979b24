package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kstaniek/zmk-ipc-bridge/internal/adapter"
	"github.com/kstaniek/zmk-ipc-bridge/internal/egress"
	"github.com/kstaniek/zmk-ipc-bridge/internal/ingress"
	"github.com/kstaniek/zmk-ipc-bridge/internal/metrics"
	"github.com/kstaniek/zmk-ipc-bridge/internal/simhost"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("zmk-ipc-bridged %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	egressTable := egress.NewTable(cfg.maxClients)
	egressSrv := egress.NewServer(cfg.egressSock, egressTable, cfg.acceptBacklog, l)

	endpoint := adapter.ParseEndpoint(cfg.endpoint)
	host := simhost.NewHost(0, endpoint, defaultKeymap(cfg.rows, cfg.cols), egressTable)

	ingressSrv := ingress.NewServer(cfg.ingressSock, ingress.Geometry{Columns: uint32(cfg.cols)}, host, 1, l)
	ingressSrv.Enable()

	go func() {
		if err := egressSrv.Serve(ctx); err != nil {
			l.Error("egress_server_error", "error", err)
			cancel()
		}
	}()
	go func() {
		if err := ingressSrv.Serve(ctx); err != nil {
			l.Error("ingress_server_error", "error", err)
			cancel()
		}
	}()

	metrics.SetReadinessFunc(func() bool {
		select {
		case <-egressSrv.Ready():
		default:
			return false
		}
		select {
		case <-ingressSrv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("bridge_config", "ingress_sock", cfg.ingressSock, "egress_sock", cfg.egressSock,
		"rows", cfg.rows, "cols", cfg.cols, "max_clients", cfg.maxClients)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	ingressSrv.Shutdown()
	egressSrv.Shutdown()
	wg.Wait()
}

// defaultKeymap assigns a run of HID usage codes, 0x04 (HID usage "a")
// through 0x27 (HID usage "0"), to positions 0, 1, 2, ... of a rows x cols
// matrix, so the simulated host produces a non-empty keyboard report without
// requiring an external keymap file. Positions from 36 on are left unmapped
// and produce no HID usage.
func defaultKeymap(rows, cols int) simhost.Keymap {
	km := make(simhost.Keymap, rows*cols)
	usage := byte(0x04)
	for pos := 0; pos < rows*cols && usage < 0x28; pos++ {
		km[uint32(pos)] = usage
		usage++
	}
	return km
}
