package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type appConfig struct {
	ingressSock     string
	egressSock      string
	rows            int
	cols            int
	maxClients      int
	acceptBacklog   int
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	endpoint        string
}

// fileConfig is the YAML config file tier (lowest precedence): the settings
// that rarely change per invocation. Flags and environment both override
// whatever a file sets.
type fileConfig struct {
	IngressSock   string `yaml:"ingress_sock"`
	EgressSock    string `yaml:"egress_sock"`
	Rows          int    `yaml:"rows"`
	Cols          int    `yaml:"cols"`
	MaxClients    int    `yaml:"max_clients"`
	AcceptBacklog int    `yaml:"accept_backlog"`
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	ingressSock := flag.String("ingress-sock", "/run/zmk-ipc/ingress.sock", "Ingress Unix-domain socket path")
	egressSock := flag.String("egress-sock", "/run/zmk-ipc/egress.sock", "Egress Unix-domain socket path")
	rows := flag.Int("rows", 4, "Simulated key matrix row count")
	cols := flag.Int("cols", 10, "Simulated key matrix column count")
	maxClients := flag.Int("max-clients", 8, "Maximum simultaneous egress observers (0 = unlimited)")
	acceptBacklog := flag.Int("accept-backlog", 5, "Egress accept backlog setting (recorded only; the listener uses the OS default backlog)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	endpoint := flag.String("endpoint", "usb", "Simulated HID output endpoint: usb|ble:<profile>|none")
	configPath := flag.String("config", "", "Optional YAML config file for socket paths and matrix dimensions")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.ingressSock = *ingressSock
	cfg.egressSock = *egressSock
	cfg.rows = *rows
	cfg.cols = *cols
	cfg.maxClients = *maxClients
	cfg.acceptBacklog = *acceptBacklog
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.endpoint = *endpoint

	if *configPath != "" {
		if err := applyFileOverrides(cfg, *configPath, setFlags); err != nil {
			fmt.Printf("config file error: %v\n", err)
			return nil, *showVersion
		}
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// applyFileOverrides loads a YAML file and applies its values for any field
// whose flag was not explicitly set. File values sit below env and flags in
// precedence, so this must run before applyEnvOverrides.
func applyFileOverrides(c *appConfig, path string, set map[string]struct{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if _, ok := set["ingress-sock"]; !ok && fc.IngressSock != "" {
		c.ingressSock = fc.IngressSock
	}
	if _, ok := set["egress-sock"]; !ok && fc.EgressSock != "" {
		c.egressSock = fc.EgressSock
	}
	if _, ok := set["rows"]; !ok && fc.Rows > 0 {
		c.rows = fc.Rows
	}
	if _, ok := set["cols"]; !ok && fc.Cols > 0 {
		c.cols = fc.Cols
	}
	if _, ok := set["max-clients"]; !ok && fc.MaxClients != 0 {
		c.maxClients = fc.MaxClients
	}
	if _, ok := set["accept-backlog"]; !ok && fc.AcceptBacklog > 0 {
		c.acceptBacklog = fc.AcceptBacklog
	}
	return nil
}

// applyEnvOverrides maps ZMK_IPC_* environment variables to config fields
// unless a corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["ingress-sock"]; !ok {
		if v, ok := get("ZMK_IPC_INGRESS_SOCK"); ok && v != "" {
			c.ingressSock = v
		}
	}
	if _, ok := set["egress-sock"]; !ok {
		if v, ok := get("ZMK_IPC_EGRESS_SOCK"); ok && v != "" {
			c.egressSock = v
		}
	}
	if _, ok := set["rows"]; !ok {
		if v, ok := get("ZMK_IPC_ROWS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.rows = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid ZMK_IPC_ROWS: %w", err)
			}
		}
	}
	if _, ok := set["cols"]; !ok {
		if v, ok := get("ZMK_IPC_COLS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.cols = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid ZMK_IPC_COLS: %w", err)
			}
		}
	}
	if _, ok := set["max-clients"]; !ok {
		if v, ok := get("ZMK_IPC_MAX_CLIENTS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxClients = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid ZMK_IPC_MAX_CLIENTS: %w", err)
			}
		}
	}
	if _, ok := set["accept-backlog"]; !ok {
		if v, ok := get("ZMK_IPC_ACCEPT_BACKLOG"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.acceptBacklog = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid ZMK_IPC_ACCEPT_BACKLOG: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("ZMK_IPC_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("ZMK_IPC_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("ZMK_IPC_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("ZMK_IPC_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid ZMK_IPC_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}

// validate performs basic semantic validation of the parsed configuration.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.rows <= 0 {
		return fmt.Errorf("rows must be > 0 (got %d)", c.rows)
	}
	if c.cols <= 0 {
		return fmt.Errorf("cols must be > 0 (got %d)", c.cols)
	}
	if c.maxClients < 0 {
		return fmt.Errorf("max-clients must be >= 0")
	}
	if c.acceptBacklog <= 0 {
		return fmt.Errorf("accept-backlog must be > 0")
	}
	if c.ingressSock == "" {
		return errors.New("ingress-sock must not be empty")
	}
	if c.egressSock == "" {
		return errors.New("egress-sock must not be empty")
	}
	return nil
}
