package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/shaiso/bqflow/internal/api"
	"github.com/shaiso/bqflow/internal/backend"
	"github.com/shaiso/bqflow/internal/domain"
	"github.com/shaiso/bqflow/internal/engine"
	"github.com/shaiso/bqflow/internal/mq"
	"github.com/shaiso/bqflow/internal/orchestrator"
	"github.com/shaiso/bqflow/internal/repo"
	"github.com/shaiso/bqflow/internal/telemetry"
	"github.com/shaiso/bqflow/internal/worker"
)

// defaultWorkers — размер пула, если не задан --workers и BQFLOW_WORKERS.
const defaultWorkers = 10

// Globals — глобальные флаги bqflow.
type Globals struct {
	DBURL   string
	AMQPURL string
	JSON    bool

	// stdout и stderr подменяются в тестах
	stdout io.Writer
	stderr io.Writer
}

// AddFlags регистрирует глобальные флаги.
func (g *Globals) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&g.DBURL, "db-url", repo.DSNFromEnv(), "PostgreSQL connection string (env DB_URL)")
	cmd.PersistentFlags().StringVar(&g.AMQPURL, "amqp-url", mq.URLFromEnv(), "RabbitMQ URL (env RABBITMQ_URL)")
	cmd.PersistentFlags().BoolVar(&g.JSON, "json", false, "Output in JSON format")
}

// Output создаёт Output по флагу --json.
func (g *Globals) Output() *Output {
	if g.stdout != nil {
		return NewOutputTo(g.stdout, g.stderr, g.JSON)
	}
	return NewOutput(g.JSON)
}

// runOptions — флаги выполнения workflow, общие для run, schedule и serve.
type runOptions struct {
	entrypoint      string
	workers         int
	continueOnError bool
	skipEstimate    bool
	record          bool
	notify          bool
	notifyTasks     bool
	metricsAddr     string

	// dryRun подменяет backend на backend.Noop (команда plan)
	dryRun bool

	// api монтирует HTTP API рядом с /metrics (serve)
	api bool
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.entrypoint, "entrypoint", "", "Override the workflow entrypoint")
	cmd.Flags().IntVar(&o.workers, "workers", workersFromEnv(), "Number of concurrent workers (env BQFLOW_WORKERS)")
	cmd.Flags().BoolVar(&o.continueOnError, "continue-on-error", false, "Record failed tasks and keep running independent branches")
	cmd.Flags().BoolVar(&o.skipEstimate, "skip-estimate", false, "Do not estimate processed bytes with EXPLAIN")
	cmd.Flags().BoolVar(&o.record, "record", false, "Persist runs and task reports to PostgreSQL")
	cmd.Flags().BoolVar(&o.notify, "notify", false, "Publish run results to RabbitMQ")
	cmd.Flags().BoolVar(&o.notifyTasks, "notify-tasks", false, "Also publish every task report (with --notify)")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
}

// workersFromEnv читает BQFLOW_WORKERS.
func workersFromEnv() int {
	if v := os.Getenv("BQFLOW_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultWorkers
}

// services — внешние зависимости одной команды.
type services struct {
	logger    *slog.Logger
	pool      *pgxpool.Pool
	conn      *mq.Connection
	publisher *mq.Publisher
	registry  *prometheus.Registry
	metrics   *telemetry.Metrics
	server    *http.Server
	orch      *orchestrator.Orchestrator
}

// newServices подключает то, что нужно для opts, и создаёт Orchestrator.
// needMQ принудительно подключает RabbitMQ (serve, schedule --publish).
func newServices(ctx context.Context, g *Globals, opts *runOptions, needMQ bool) (*services, error) {
	s := &services{logger: telemetry.SetupLogger()}

	if err := s.connect(ctx, g, opts, needMQ); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *services) connect(ctx context.Context, g *Globals, opts *runOptions, needMQ bool) error {
	var be worker.Backend = backend.Noop{Logger: s.logger}
	if !opts.dryRun || opts.record {
		pool, err := repo.NewPool(ctx, g.DBURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		s.pool = pool
		s.logger.Info("database connected")
	}

	if !opts.dryRun {
		pg, err := backend.NewPostgres(backend.PostgresConfig{
			DB:           s.pool,
			SkipEstimate: opts.skipEstimate,
			Logger:       s.logger,
		})
		if err != nil {
			return err
		}
		be = pg
	}

	var observers []orchestrator.Observer
	if opts.record {
		if err := repo.EnsureSchema(ctx, s.pool); err != nil {
			return err
		}
		observers = append(observers, repo.NewRecorder(s.pool, s.logger))
	}

	if opts.notify || needMQ {
		conn, err := mq.NewConnection(ctx, g.AMQPURL, s.logger)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		s.conn = conn
		if err := mq.SetupTopology(conn); err != nil {
			return err
		}
		s.publisher = mq.NewPublisher(conn, s.logger)
	}
	if opts.notify {
		observers = append(observers, mq.NewNotifier(s.publisher, opts.notifyTasks))
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = telemetry.NewMetrics(s.registry)

	s.orch = orchestrator.New(orchestrator.Config{
		Backend:         be,
		Source:          worker.FileSource{},
		Workers:         opts.workers,
		ContinueOnError: opts.continueOnError,
		Observers:       observers,
		Metrics:         s.metrics,
		Logger:          s.logger,
	})

	if opts.metricsAddr != "" {
		s.serveHTTP(opts.metricsAddr, opts.api && opts.record, opts.api)
	}
	return nil
}

// serveHTTP запускает /healthz, /metrics и, если нужно, HTTP API.
// history подключает чтение runs из БД.
func (s *services) serveHTTP(addr string, history, withAPI bool) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.conn != nil && !s.conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", telemetry.Handler(s.registry))

	if withAPI {
		cfg := api.Config{Active: s.orch, Logger: s.logger}
		if history {
			cfg.Runs = repo.NewRunRepo(s.pool)
			cfg.Reports = repo.NewReportRepo(s.pool)
		}
		if s.publisher != nil {
			cfg.Requester = s.publisher
		}
		api.NewHandler(cfg).RegisterRoutes(mux, s.registry)
	}

	s.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
}

// Close освобождает ресурсы в обратном порядке.
func (s *services) Close() {
	if s.orch != nil {
		s.orch.Stop()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctx)
	}
	if s.conn != nil {
		s.conn.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// loadWorkflow читает файл определения и применяет --entrypoint.
func loadWorkflow(path, entrypoint string) (*domain.Workflow, error) {
	wf, err := engine.LoadWorkflow(path)
	if err != nil {
		return nil, err
	}

	if entrypoint != "" && entrypoint != wf.Entrypoint {
		wf.Entrypoint = entrypoint
		if err := engine.Validate(wf); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return wf, nil
}
