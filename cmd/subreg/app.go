package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/config"
	"github.com/subtensor-tools/subreg/journal"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/pow"
	"github.com/subtensor-tools/subreg/registration"
	"github.com/subtensor-tools/subreg/rpc"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/subtensor"
	"github.com/subtensor-tools/subreg/transport"
)

const metricsShutdownTimeout = 5 * time.Second

// node is everything the commands need from a chain.
type node interface {
	registration.Chain
	pow.Chain
}

// recordingNode journals the submissions made through node.
type recordingNode struct {
	node
	recorder *journal.Recorder
}

func (n recordingNode) SignAndSendExtrinsic(
	ctx context.Context,
	call *chain.Call,
	wallet *signing.Wallet,
	opts chain.SendOptions,
) chain.SubmissionResult {
	return n.recorder.SignAndSendExtrinsic(ctx, call, wallet, opts)
}

// env is what a command runs against.
type env struct {
	cfg     *config.Config
	node    node
	wallet  *signing.Wallet
	journal *journal.Journal
	out     io.Writer
}

type app struct {
	cfg *config.Config
	out io.Writer

	// dial connects to a node. Replaced in tests.
	dial func(ctx context.Context, cfg *config.Config) (node, func() error, error)
}

// setup finalizes the configuration and returns a context carrying the logger.
func (a *app) setup() (context.Context, context.CancelFunc, error) {
	cfg, err := config.SetupConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	a.cfg = cfg

	logger := logging.New(cfg.LoggingOptions())
	logger.Sugar().Debugf("version: %s, dir: %v", version, cfg.Dir)
	ctx, stop := signal.NotifyContext(logging.NewContext(context.Background(), logger), os.Interrupt)
	return ctx, stop, nil
}

// withJournal runs fn against the journal only.
func (a *app) withJournal(fn func(ctx context.Context, e *env) error) error {
	ctx, stop, err := a.setup()
	if err != nil {
		return err
	}
	defer stop()

	j, err := journal.Open(a.cfg.Journal.Dir)
	if err != nil {
		return err
	}
	defer j.Close()
	return fn(ctx, &env{cfg: a.cfg, journal: j, out: a.out})
}

// withChain connects to the configured chain, loads the wallet and runs fn.
func (a *app) withChain(fn func(ctx context.Context, e *env) error) (err error) {
	ctx, stop, err := a.setup()
	if err != nil {
		return err
	}
	defer stop()
	logger := logging.FromContext(ctx)

	wallet, err := a.cfg.Wallet.Load()
	if err != nil {
		return fmt.Errorf("loading wallet: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		if werr := eg.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
			err = multierror.Append(err, werr)
		}
	}()

	if port := a.cfg.MetricsPort; port != nil {
		serveMetrics(ctx, eg, *port)
	}

	dial := a.dial
	if dial == nil {
		dial = dialNode
	}
	var n node
	var closeNode func() error
	if a.cfg.Dev.Enabled {
		mem := devChain(a.cfg.Dev, wallet)
		eg.Go(func() error { return mem.Run(ctx) })
		n, closeNode = mem, func() error { return nil }
	} else {
		n, closeNode, err = dial(ctx, a.cfg)
		if err != nil {
			return err
		}
	}
	defer func() {
		if cerr := closeNode(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("closing chain client: %w", cerr))
		}
	}()

	e := &env{cfg: a.cfg, node: n, wallet: wallet, out: a.out}
	if !a.cfg.Journal.Disable {
		j, err := journal.Open(a.cfg.Journal.Dir)
		if err != nil {
			return err
		}
		defer j.Close()
		e.journal = j
		e.node = recordingNode{node: n, recorder: journal.NewRecorder(n, j)}
	}

	logger.Info("connected",
		zap.Bool("dev", a.cfg.Dev.Enabled),
		zap.Object("chain", a.cfg.Chain),
		zap.Stringer("coldkey", wallet.ColdkeyID()),
		zap.Stringer("hotkey", wallet.HotkeyID()),
	)
	return fn(ctx, e)
}

func dialNode(ctx context.Context, cfg *config.Config) (node, func() error, error) {
	subCfg, err := cfg.Chain.Subtensor()
	if err != nil {
		return nil, nil, err
	}
	conn, err := rpc.Dial(ctx, cfg.Chain.Endpoint, rpc.WithTimeout(cfg.Chain.Timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", cfg.Chain.Endpoint, err)
	}
	client, err := subtensor.New(ctx, conn, subtensor.WithConfig(subCfg))
	if err != nil {
		return nil, nil, multierror.Append(err, conn.Close())
	}
	return client, conn.Close, nil
}

// devChain creates an in-memory chain with the configured subnets owned by wallet.
func devChain(cfg config.DevConfig, wallet *signing.Wallet) *transport.InMemory {
	mem := transport.NewInMemory(transport.WithConfig(cfg.Transport()))
	for _, netuid := range cfg.Subnets {
		mem.AddSubnet(netuid, wallet.ColdkeyID(), cfg.Transport().Difficulty)
	}
	return mem
}

func serveMetrics(ctx context.Context, eg *errgroup.Group, port uint16) {
	logger := logging.FromContext(ctx).Named("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(int(port))),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	eg.Go(func() error {
		logger.Info("serving metrics", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving metrics: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
