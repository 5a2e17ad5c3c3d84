package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"

	"github.com/flashroute/arbcore/cmd/arbitrage-core/config"
	"github.com/flashroute/arbcore/pkg/diagnostics"
	"github.com/flashroute/arbcore/pkg/evaluator"
	"github.com/flashroute/arbcore/pkg/ingress"
)

// slogLogger adapts *slog.Logger to the Logger interface every pkg/*
// package re-declares, the way cmd/client/main.go hands rootLogger.With(...)
// straight to client.Config.Logger.
type slogLogger struct{ *slog.Logger }

func main() {
	rootLogHandler := slog.NewJSONHandler(os.Stdout, nil)
	rootLogger := slog.New(rootLogHandler)
	fail := func(msg string, args ...any) {
		rootLogger.Error(msg, args...)
		os.Exit(1)
	}

	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("failed to load configuration", "error", err)
		return
	}

	prometheusRegistry := prometheus.DefaultRegisterer

	universe, err := loadUniverse(cfg.UniversePath, cfg.MaxHops, cfg.BaseTokens)
	if err != nil {
		fail("failed to load pool universe", "error", err)
		return
	}
	rootLogger.Info("loaded pool universe", "routes", universe.Catalog.Len(), "pools", len(universe.PoolMeta))

	cores := resolveEvaluatorCores(cfg.EvaluatorCores)
	rootLogger.Info("resolved evaluator concurrency", "cores", cores)

	eval := evaluator.New(universe.Catalog, universe.Cache, universe.Safety, evaluator.Config{
		MinProfitThresholdBP: cfg.MinProfitThresholdBP,
		SlippageBP:           cfg.SlippageBP,
		DeadlineMS:           cfg.EvaluatorDeadlineMS,
		Cores:                cores,
	}, slogLogger{rootLogger.With("component", "evaluator")}, prometheusRegistry)

	sink := evaluator.NewSink(cfg.SinkBufferSize, time.Duration(cfg.SinkSendTimeoutMS)*time.Millisecond,
		slogLogger{rootLogger.With("component", "sink")}, eval.Metrics())

	var diag *diagnostics.Sink
	if cfg.DiagnosticsLogPath != "" {
		diag, err = diagnostics.Open(cfg.DiagnosticsLogPath, slogLogger{rootLogger.With("component", "diagnostics")})
		if err != nil {
			fail("failed to open diagnostics log", "error", err)
			return
		}
		defer diag.Close()
	}

	ingressMetrics := ingress.NewMetrics(prometheusRegistry)
	dispatcher := ingress.NewDispatcher(universe.Cache, universe.Pools, universe.Tokens, universe.PoolMeta,
		cfg.TaskQueueSize, slogLogger{rootLogger.With("component", "ingress")}, ingressMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsListenAddr != "" {
		go serveMetrics(cfg.MetricsListenAddr, rootLogger.With("component", "metrics"))
	}

	go dispatcher.Run(ctx, dialEventStream(cfg.EventStreamAddress))

	for {
		select {
		case task, ok := <-dispatcher.Tasks():
			if !ok {
				return
			}
			opp := eval.Evaluate(ctx, task.Pool, task.PivotToken, task.PivotAmount)
			if opp == nil {
				continue
			}
			sink.Send(opp)
			if diag != nil {
				diag.Record(opp)
			}
		case opp := <-sink.Opportunities():
			// The execution engine that would consume sink.Opportunities() is
			// an external collaborator out of scope; logging stands in for it.
			rootLogger.Info("opportunity", "pool", opp.Pool, "pivot_token", opp.PivotToken, "profit_bp", opp.Best.ProfitBP)
		case <-ctx.Done():
			return
		}
	}
}

// resolveEvaluatorCores turns the evaluator_cores config value into a worker
// count: a positive value is used as-is; zero or negative sizes the pool
// against gopsutil's physical core count rather than GOMAXPROCS, so the
// worker pool tracks the machine's actual core topology in containerized
// deployments where GOMAXPROCS may be set conservatively.
func resolveEvaluatorCores(cores int) int {
	if cores > 0 {
		return cores
	}
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		return evaluator.ResolveConcurrency(0)
	}
	return n
}

// dialEventStream returns a dial func that connects to a TCP or unix-socket
// event stream address, picking the network by whether addr parses as a
// host:port pair -- matching the ingress.Dispatcher.Run contract's injected
// dial signature.
func dialEventStream(addr string) func(ctx context.Context) (net.Conn, error) {
	network := "unix"
	if _, _, err := net.SplitHostPort(addr); err == nil {
		network = "tcp"
	}
	dialer := &net.Dialer{}
	return func(ctx context.Context) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("serving metrics", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}
