package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/distri-network/distri/internal/api"
	"github.com/distri-network/distri/internal/app/ledger"
	"github.com/distri-network/distri/internal/app/market"
	"github.com/distri-network/distri/internal/app/schedule"
	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/health"
	"github.com/distri-network/distri/internal/infra/badger"
	"github.com/distri-network/distri/internal/infra/events"
	_ "github.com/distri-network/distri/internal/infra/metrics" // Register Prometheus metrics
	"github.com/distri-network/distri/internal/infra/sqlite"
	"github.com/distri-network/distri/internal/security"
)

// PurposeMint derives the default token address from the node key.
const PurposeMint = "mint"

// Daemon is the Distri node runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Home    string
	Log     *zap.Logger
	Keypair *security.Keypair

	Store  domain.Store
	Ledger *ledger.Ledger
	Engine *market.Engine
	Health *health.Checker
	Server *api.Server

	nats   *events.NATSSink
	traces *sdktrace.TracerProvider
	cancel context.CancelFunc
}

// New creates and initializes a Daemon from $DISTRI_HOME/config.toml.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, distriHome())
}

// NewWithConfig creates a Daemon with the given configuration and home
// directory. The home directory holds the node keypair.
func NewWithConfig(cfg Config, home string) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	d := &Daemon{Config: cfg, Home: home, Log: log}
	if err := d.init(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) init() error {
	cfg := d.Config

	kp, err := security.LoadOrCreateKeypair(d.Home)
	if err != nil {
		return fmt.Errorf("load keypair: %w", err)
	}
	d.Keypair = kp

	d.Store, err = OpenStore(cfg.Store)
	if err != nil {
		return err
	}

	mint, authority, err := d.mintAddress()
	if err != nil {
		return err
	}
	d.Ledger = ledger.New(domain.SystemClock{})
	if err := d.ensureMint(mint, authority); err != nil {
		return err
	}

	// Events: always logged, also published to NATS when configured.
	sinks := events.Multi{events.NewLogSink(d.Log)}
	if cfg.Events.NATSURL != "" {
		d.nats, err = events.ConnectNATS(cfg.Events.NATSURL, cfg.Node.Name, d.Log)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		sinks = append(sinks, d.nats)
	}

	var tracer trace.Tracer
	if cfg.Telemetry.Tracing {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		d.traces = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(d.traces)
		tracer = d.traces.Tracer("github.com/distri-network/distri/internal/app/market")
	}

	admins, _ := cfg.AdminKeys() // validated above
	overflow, _ := domain.ParseOverflowPolicy(cfg.Market.Overflow)
	d.Engine, err = market.New(market.Params{
		Store:    d.Store,
		Tokens:   d.Ledger,
		Schedule: schedule.New(cfg.Schedule),
		Mint:     mint,
		Admins:   admins,
		Overflow: overflow,
		Events:   sinks,
		Logger:   d.Log,
		Tracer:   tracer,
	})
	if err != nil {
		return err
	}

	d.Health = health.NewChecker(d.Store, cfg.Store.Path(), d.Log)
	if d.nats != nil {
		d.Health.Add(health.Check{
			Name:    "nats",
			CheckFn: func(context.Context) error { return d.nats.Check() },
		})
	}

	d.Server = api.NewServer(api.Options{
		Engine:       d.Engine,
		Ledger:       d.Ledger,
		Store:        d.Store,
		Health:       d.Health,
		Logger:       d.Log,
		RateLimit:    cfg.API.RateLimit,
		RateBurst:    cfg.API.RateBurst,
		MaxClockSkew: cfg.ClockSkew(),
	})
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	if db, ok := d.Store.(*sqlite.DB); ok {
		if err := db.SetNodeInfo("node_pubkey", kp.Pubkey().String()); err != nil {
			return err
		}
		if err := db.SetNodeInfo("mint", mint.String()); err != nil {
			return err
		}
	}
	return nil
}

// OpenStore opens the configured keyed store backend.
func OpenStore(cfg StoreConfig) (domain.Store, error) {
	dir := cfg.Path()
	switch cfg.Backend {
	case "", "sqlite":
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	case "badger":
		db, err := badger.Open(filepath.Join(dir, "badger"))
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// mintAddress resolves the token mint and its authority from config,
// defaulting both to the node key.
func (d *Daemon) mintAddress() (mint, authority domain.Pubkey, err error) {
	authority = d.Keypair.Pubkey()
	if s := d.Config.Market.MintAuthority; s != "" {
		if authority, err = domain.ParsePubkey(s); err != nil {
			return mint, authority, fmt.Errorf("market.mint_authority: %w", err)
		}
	}
	mint = domain.DeriveAuthority(PurposeMint, d.Keypair.Pubkey())
	if s := d.Config.Market.Mint; s != "" {
		if mint, err = domain.ParsePubkey(s); err != nil {
			return mint, authority, fmt.Errorf("market.mint: %w", err)
		}
	}
	return mint, authority, nil
}

// ensureMint creates the mint on first start and checks its decimals on
// later starts.
func (d *Daemon) ensureMint(mint, authority domain.Pubkey) error {
	return d.Store.Update(context.Background(), func(tx domain.Tx) error {
		m, err := d.Ledger.GetMint(tx, mint)
		switch {
		case err == nil:
			if m.Decimals != d.Config.Market.Decimals {
				return fmt.Errorf("mint %s has %d decimals, config says %d: %w",
					mint, m.Decimals, d.Config.Market.Decimals, domain.ErrDecimalsMismatch)
			}
			return nil
		case errors.Is(err, domain.ErrMintNotFound):
			d.Log.Info("creating mint", zap.Stringer("mint", mint), zap.Stringer("authority", authority))
			return d.Ledger.CreateMint(tx, domain.Mint{
				Address:   mint,
				Decimals:  d.Config.Market.Decimals,
				Authority: authority,
			})
		default:
			return err
		}
	})
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Log.Info("serving",
		zap.String("addr", "http://"+addr),
		zap.Stringer("mint", d.Engine.Mint()),
		zap.String("store", d.Config.Store.Backend),
		zap.Bool("metrics", d.Config.Telemetry.Prometheus),
		zap.Bool("nats", d.nats != nil))

	err := httpServer.ListenAndServe()
	d.Close()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.nats != nil {
		d.nats.Close()
		d.nats = nil
	}
	if d.traces != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.traces.Shutdown(ctx)
		cancel()
		d.traces = nil
	}
	if d.Store != nil {
		_ = d.Store.Close()
		d.Store = nil
	}
	if d.Log != nil {
		_ = d.Log.Sync()
	}
}

// NewLogger builds the node logger from the logging config.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format != "json" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
