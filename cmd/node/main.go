package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wotmesh/wotmesh-node/internal/clock"
	"github.com/wotmesh/wotmesh-node/internal/generator"
	"github.com/wotmesh/wotmesh-node/internal/metrics"
	"github.com/wotmesh/wotmesh-node/internal/rules"
	"github.com/wotmesh/wotmesh-node/internal/transport"
	"github.com/wotmesh/wotmesh-node/internal/wot/chain"
	"github.com/wotmesh/wotmesh-node/internal/wot/model"
	badgerrepo "github.com/wotmesh/wotmesh-node/internal/wot/repository/badger"
	clickhouserepo "github.com/wotmesh/wotmesh-node/internal/wot/repository/clickhouse"
	"github.com/wotmesh/wotmesh-node/internal/wot/service"
	"github.com/wotmesh/wotmesh-node/pkg/fifolane"
)

type config struct {
	DataDir       string `long:"data-dir" env:"WOTMESH_DATA_DIR" description:"chain database directory" default:"./data"`
	Addr          string `long:"addr" env:"WOTMESH_ADDR" description:"HTTP listen address" default:":9330"`
	ClickhouseDSN string `long:"clickhouse-dsn" env:"WOTMESH_CLICKHOUSE_DSN" description:"stats warehouse DSN (optional)"`
	Currency      string `long:"currency" env:"WOTMESH_CURRENCY" description:"currency name" default:"wotmesh"`
	SelfPubkey    string `long:"self-pubkey" env:"WOTMESH_SELF_PUBKEY" description:"node public key"`
	Participate   bool   `long:"participate" env:"WOTMESH_PARTICIPATE" description:"run proof-of-work generation"`
	StatsFlush    int    `long:"stats-flush-size" env:"WOTMESH_STATS_FLUSH_SIZE" description:"stats batch size" default:"200"`
	StatsRPS      int    `long:"stats-rps" env:"WOTMESH_STATS_RPS" description:"stats flush rate limit" default:"5"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("node failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	repo, err := badgerrepo.New(cfg.DataDir, metrics.DAL{}, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("close repository", zap.Error(closeErr))
		}
	}()

	conf, err := loadParameters(ctx, repo, cfg)
	if err != nil {
		return err
	}

	var stats chain.StatsPusher
	if cfg.ClickhouseDSN != "" {
		warehouse, err := clickhouserepo.New(cfg.ClickhouseDSN, conf.Currency, metrics.Warehouse{})
		if err != nil {
			return fmt.Errorf("init stats warehouse: %w", err)
		}
		defer func() {
			_ = warehouse.Close()
		}()
		pusher := clickhouserepo.NewPusher(warehouse, logger, cfg.StatsFlush, 5*time.Second, cfg.StatsRPS)
		pusher.Start(ctx)
		defer pusher.Stop()
		stats = pusher
	}

	engine, err := rules.New(repo, conf, logger)
	if err != nil {
		return err
	}
	gen, err := generator.New(repo, conf, clock.System{}, logger)
	if err != nil {
		return err
	}

	core := metrics.NewCore(conf.Currency)

	chainCtx, err := service.NewChainContext(repo, engine, conf, logger)
	if err != nil {
		return err
	}
	brancher, err := service.NewBrancher(repo, logger)
	if err != nil {
		return err
	}
	powEngine := service.NewPowEngine(logger)
	controller, err := service.NewController(powEngine, gen, repo, engine, conf, core, logger)
	if err != nil {
		return err
	}
	switcher, err := service.NewSwitcher(repo, chainCtx, brancher, controller, conf, core, logger)
	if err != nil {
		return err
	}
	bookkeeper, err := service.NewBookkeeper(repo, chainCtx, stats, conf, logger)
	if err != nil {
		return err
	}

	lane := fifolane.New(logger.Named("lane"))
	lane.Start(ctx)
	defer lane.Stop()

	admission, err := service.NewAdmission(lane, repo, chainCtx, switcher, controller, bookkeeper, conf, core, logger)
	if err != nil {
		return err
	}
	controller.BindSubmitter(admission)

	requirements, err := service.NewRequirements(repo, engine, gen, conf, logger)
	if err != nil {
		return err
	}

	maintainer, err := service.NewMaintainer(repo, core, logger)
	if err != nil {
		return err
	}
	maintainer.RegularCleanMemory(ctx)
	defer maintainer.StopCleanMemory()

	handler, err := transport.NewHandler(chainCtx, admission, brancher, requirements, controller, repo, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.Default().Handler(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		logger.Info("starting HTTP server", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if conf.Participate {
		group.Go(func() error {
			err := controller.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return group.Wait()
}

// loadParameters prefers the parameters persisted from the root block and
// falls back to defaults overridden by flags.
func loadParameters(ctx context.Context, repo *badgerrepo.Repository, cfg config) (model.Parameters, error) {
	stored, err := repo.GetParameters(ctx)
	if err != nil {
		return model.Parameters{}, fmt.Errorf("load parameters: %w", err)
	}
	conf := model.DefaultParameters(cfg.Currency)
	if stored != nil {
		conf = *stored
	}
	conf.SelfPubkey = cfg.SelfPubkey
	conf.Participate = cfg.Participate
	if err := conf.Validate(); err != nil {
		return model.Parameters{}, fmt.Errorf("invalid parameters: %w", err)
	}
	return conf, nil
}
