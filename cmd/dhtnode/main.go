// Command dhtnode runs a single Chord DHT participant: it joins or
// creates a ring, serves the wire protocol, and runs the maintenance
// daemons until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kunwarpradip/distributedchord-dht/internal/bootstrap"
	"github.com/kunwarpradip/distributedchord-dht/internal/config"
	"github.com/kunwarpradip/distributedchord-dht/internal/daemon"
	"github.com/kunwarpradip/distributedchord-dht/internal/dht"
	"github.com/kunwarpradip/distributedchord-dht/internal/logger"
	zapfactory "github.com/kunwarpradip/distributedchord-dht/internal/logger/zap"
	"github.com/kunwarpradip/distributedchord-dht/internal/metrics"
	"github.com/kunwarpradip/distributedchord-dht/internal/netsim"
	"github.com/kunwarpradip/distributedchord-dht/internal/node"
	"github.com/kunwarpradip/distributedchord-dht/internal/ring"
	"github.com/kunwarpradip/distributedchord-dht/internal/storage"
	"github.com/kunwarpradip/distributedchord-dht/internal/telemetry"
	"github.com/kunwarpradip/distributedchord-dht/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "dhtnode:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}

	zapLogger, err := zapfactory.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer zapLogger.Sync()

	var lgr logger.Logger = zapfactory.NewZapAdapter(zapLogger)
	if !cfg.Logging.Active {
		lgr = logger.NopLogger{}
	}
	lgr = lgr.Named("dhtnode")
	cfg.LogConfig(lgr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Tracing, "dhtnode")
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	space, err := ring.NewSpace(cfg.Ring.Bits)
	if err != nil {
		return err
	}

	selfAddr := fmt.Sprintf("%s:%d", cfg.Node.Host, cfg.Node.Port)
	metricsRegistry := metrics.NewRegistry()
	netProfile := netsim.NewProfile()

	n := node.New(selfAddr, space,
		node.WithLogger(lgr.Named("node")),
		node.WithMetrics(metricsRegistry),
		node.WithNetsim(netProfile),
		node.WithTracer(tracer),
		node.WithRPCTimeout(cfg.Timing.RPCTimeout))

	shard := storage.NewShard(lgr.Named("storage"))
	facade := dht.New(n, shard, lgr.Named("dht"), metricsRegistry)

	server, err := transport.NewServer(selfAddr, facade,
		transport.WithServerLogger(lgr.Named("transport")),
		transport.WithServerMetrics(metricsRegistry),
		transport.WithServerNetsim(netProfile))
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}

	disco, err := resolveBootstrap(ctx, cfg.Bootstrap)
	if err != nil {
		return fmt.Errorf("resolving bootstrap: %w", err)
	}

	peers, err := disco.Discover(ctx)
	if err != nil {
		lgr.Warn("bootstrap discovery failed, starting a fresh ring", logger.F("error", err.Error()))
		peers = nil
	}

	bootstrapAddr := ""
	for _, p := range peers {
		if p != selfAddr {
			bootstrapAddr = p
			break
		}
	}
	if err := n.Join(ctx, bootstrapAddr); err != nil {
		return fmt.Errorf("joining ring: %w", err)
	}
	if err := disco.Register(ctx, selfAddr); err != nil {
		lgr.Warn("bootstrap registration failed", logger.F("error", err.Error()))
	}
	defer disco.Deregister(context.Background(), selfAddr)

	sched := daemon.New(lgr.Named("daemon"))
	facade.RegisterDaemons(sched, cfg.Timing.Stabilize, cfg.Timing.FixFingers, cfg.Timing.CheckPredecessor, cfg.Timing.Migrate)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sched.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return server.Serve(groupCtx)
	})

	lgr.Info("node ready", logger.F("addr", selfAddr), logger.F("id", n.SelfID()), logger.F("bootstrap", bootstrapAddr))

	<-ctx.Done()
	lgr.Info("shutting down")
	_ = server.Close()

	if err := group.Wait(); err != nil {
		lgr.Error("background task exited with error", logger.F("error", err.Error()))
	}
	return nil
}

func resolveBootstrap(ctx context.Context, cfg config.BootstrapConfig) (bootstrap.Bootstrap, error) {
	switch cfg.Mode {
	case "route53":
		return bootstrap.NewRoute53Bootstrap(ctx, cfg.Route53)
	default:
		return bootstrap.NewStaticBootstrap(cfg.Peers), nil
	}
}
