package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/pow"
	"github.com/subtensor-tools/subreg/shared"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
)

//go:generate mockgen -package mocks -destination mocks/registration.go . Chain,Solver

// Chain is the chain access needed to register.
type Chain interface {
	chain.Client
	chain.Querier
	GetCurrentBlock(ctx context.Context) (uint64, error)
}

// Solver produces registration puzzle solutions.
type Solver interface {
	Available(device pow.Device) bool
	Solve(ctx context.Context, netuid uint16, hotkey ss58.AccountID, device pow.Device) (*shared.Solution, error)
}

var (
	ErrSubnetNotFound           = errors.New("subnet does not exist")
	ErrAcceleratorUnavailable   = errors.New("requested accelerator is not available")
	ErrMaxAttemptsReached       = errors.New("maximum registration attempts reached")
	ErrRegistrationNotConfirmed = errors.New("registration was accepted but the hotkey is not registered")

	errStaleSolution = errors.New("proof of work solution is stale")

	attemptsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subreg",
		Subsystem: "registration",
		Name:      "attempts_total",
		Help:      "Number of registration submissions by outcome",
	}, []string{"kind", "outcome"})

	staleMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "subreg",
		Subsystem: "registration",
		Name:      "stale_recomputes_total",
		Help:      "Number of solutions discarded because their block fell out of the acceptance window",
	})
)

// Registrar registers hotkeys on subnets.
type Registrar struct {
	chain  Chain
	solver Solver
	cfg    Config
}

type newRegistrarOptionFunc func(*newRegistrarOptions)

type newRegistrarOptions struct {
	cfg Config
}

func WithConfig(cfg Config) newRegistrarOptionFunc {
	return func(opts *newRegistrarOptions) {
		opts.cfg = cfg
	}
}

func New(c Chain, solver Solver, opts ...newRegistrarOptionFunc) *Registrar {
	options := newRegistrarOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&options)
	}
	return &Registrar{chain: c, solver: solver, cfg: options.cfg}
}

type registerOptions struct {
	maxAttempts         uint
	waitForInclusion    bool
	waitForFinalization bool
	device              pow.Device
	period              uint64
}

type RegisterOptionFunc func(*registerOptions)

func WithMaxAttempts(n uint) RegisterOptionFunc {
	return func(o *registerOptions) {
		o.maxAttempts = n
	}
}

func WithWaitForInclusion(wait bool) RegisterOptionFunc {
	return func(o *registerOptions) {
		o.waitForInclusion = wait
	}
}

func WithWaitForFinalization(wait bool) RegisterOptionFunc {
	return func(o *registerOptions) {
		o.waitForFinalization = wait
	}
}

func WithDevice(device pow.Device) RegisterOptionFunc {
	return func(o *registerOptions) {
		o.device = device
	}
}

// WithPeriod makes the extrinsic mortal for the given number of blocks.
func WithPeriod(blocks uint64) RegisterOptionFunc {
	return func(o *registerOptions) {
		o.period = blocks
	}
}

func (r *Registrar) registerOptions(opts []RegisterOptionFunc) registerOptions {
	options := registerOptions{
		maxAttempts:         r.cfg.MaxAttempts,
		waitForFinalization: true,
		device:              pow.CPU(),
		period:              r.cfg.Period,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.maxAttempts == 0 {
		options.maxAttempts = 1
	}
	return options
}

// waits reports whether the submission result reflects inclusion on chain.
func (o registerOptions) waits() bool {
	return o.waitForInclusion || o.waitForFinalization
}

func (o registerOptions) sendOptions() chain.SendOptions {
	return chain.SendOptions{
		WaitForInclusion:    o.waitForInclusion,
		WaitForFinalization: o.waitForFinalization,
		Period:              o.period,
		SignWith:            signing.Coldkey,
	}
}

// attemptState lives for one Register call.
type attemptState struct {
	made      uint
	max       uint
	lastError string
}

func (s *attemptState) fail(msg string) (exhausted bool) {
	s.made++
	s.lastError = msg
	return s.made >= s.max
}

// Register registers the wallet's hotkey on netuid using proof of work.
// It returns true when the hotkey holds a slot on the subnet, including when it already did.
func (r *Registrar) Register(
	ctx context.Context,
	wallet *signing.Wallet,
	netuid uint16,
	opts ...RegisterOptionFunc,
) (bool, error) {
	options := r.registerOptions(opts)
	hotkey := wallet.HotkeyID()
	logger := logging.FromContext(ctx).Named("registration").With(
		zap.Uint16("netuid", netuid),
		zap.Stringer("hotkey", hotkey),
	)
	ctx = logging.NewContext(ctx, logger)

	done, err := r.checkPreconditions(ctx, hotkey, netuid)
	if err != nil || done {
		return done, err
	}
	if options.device.IsGPU() && !r.solver.Available(options.device) {
		return false, fmt.Errorf("%w: %s", ErrAcceleratorUnavailable, options.device)
	}

	state := attemptState{max: options.maxAttempts}
	for {
		logger.Info("registration attempt",
			zap.Uint("attempt", state.made+1),
			zap.Uint("max_attempts", state.max),
			zap.Stringer("device", options.device),
		)
		sol, err := r.freshSolution(ctx, netuid, hotkey, options.device)
		switch {
		case errors.Is(err, pow.ErrHotkeyRegistered):
			logger.Info("hotkey got registered while solving")
			return r.confirm(ctx, netuid, hotkey)
		case ctx.Err() != nil:
			return false, ctx.Err()
		case err != nil:
			logger.Warn("failed to obtain a solution", zap.Error(err))
			attemptsMetric.WithLabelValues("pow", "no_solution").Inc()
			if state.fail(err.Error()) {
				return false, state.exhaustedErr()
			}
			continue
		}

		result := r.doPowRegister(ctx, wallet, netuid, sol, options.sendOptions())
		switch {
		case result.Success():
			attemptsMetric.WithLabelValues("pow", "accepted").Inc()
			logger.Info("registration submitted", zap.Object("result", result))
			if !options.waits() {
				return true, nil
			}
			return r.confirm(ctx, netuid, hotkey)
		case strings.Contains(result.Error, chain.AlreadyRegisteredError):
			attemptsMetric.WithLabelValues("pow", "already_registered").Inc()
			logger.Info("hotkey is already registered")
			return true, nil
		case ctx.Err() != nil:
			return false, ctx.Err()
		}
		attemptsMetric.WithLabelValues("pow", "rejected").Inc()
		logger.Warn("registration rejected", zap.String("error", result.Error), zap.Uint("attempt", state.made+1))
		if state.fail(result.Error) {
			return false, state.exhaustedErr()
		}
	}
}

func (s *attemptState) exhaustedErr() error {
	return fmt.Errorf("%w (%d): %s", ErrMaxAttemptsReached, s.made, s.lastError)
}

// checkPreconditions returns done=true when the hotkey is already registered.
func (r *Registrar) checkPreconditions(ctx context.Context, hotkey ss58.AccountID, netuid uint16) (bool, error) {
	head, err := r.chain.GetChainHead(ctx)
	if err != nil {
		return false, fmt.Errorf("reading chain head: %w", err)
	}
	exists, err := r.chain.SubnetExists(ctx, netuid, head)
	if err != nil {
		return false, fmt.Errorf("checking subnet %d: %w", netuid, err)
	}
	if !exists {
		return false, fmt.Errorf("%w: netuid %d", ErrSubnetNotFound, netuid)
	}
	neuron, err := r.chain.GetNeuronForPubkeyAndSubnet(ctx, hotkey, netuid, head)
	if err != nil {
		return false, fmt.Errorf("querying neuron: %w", err)
	}
	if !neuron.IsNull() {
		logging.FromContext(ctx).Info("already registered", zap.Uint16("uid", neuron.UID))
		return true, nil
	}
	return false, nil
}

// freshSolution solves until the solution is not stale against the current block.
func (r *Registrar) freshSolution(
	ctx context.Context,
	netuid uint16,
	hotkey ss58.AccountID,
	device pow.Device,
) (*shared.Solution, error) {
	logger := logging.FromContext(ctx)
	for recomputes := uint(0); ; recomputes++ {
		sol, err := r.solver.Solve(ctx, netuid, hotkey, device)
		if err != nil {
			return nil, err
		}
		current, err := r.chain.GetCurrentBlock(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading current block: %w", err)
		}
		if !shared.IsStale(sol, current, r.cfg.StaleTolerance) {
			return sol, nil
		}
		staleMetric.Inc()
		logger.Info("solution is stale, recomputing",
			zap.Uint64("solution_block", sol.BlockNumber),
			zap.Uint64("current_block", current),
		)
		if r.cfg.MaxStaleRecomputes > 0 && recomputes+1 >= r.cfg.MaxStaleRecomputes {
			return nil, errStaleSolution
		}
	}
}

// doPowRegister submits sol exactly once.
func (r *Registrar) doPowRegister(
	ctx context.Context,
	wallet *signing.Wallet,
	netuid uint16,
	sol *shared.Solution,
	opts chain.SendOptions,
) chain.SubmissionResult {
	call, err := r.chain.ComposeCall(ctx, chain.Module, chain.FuncRegister, chain.Params{
		{Name: "netuid", Value: netuid},
		{Name: "block_number", Value: sol.BlockNumber},
		{Name: "nonce", Value: sol.Nonce},
		{Name: "work", Value: sol.Seal},
		{Name: "hotkey", Value: wallet.HotkeyID()},
		{Name: "coldkey", Value: wallet.ColdkeyID()},
	})
	if err != nil {
		return chain.Failed("composing register call: %v", err)
	}
	return r.chain.SignAndSendExtrinsic(ctx, call, wallet, opts)
}

func (r *Registrar) confirm(ctx context.Context, netuid uint16, hotkey ss58.AccountID) (bool, error) {
	registered, err := r.chain.IsHotkeyRegistered(ctx, netuid, hotkey)
	if err != nil {
		return false, fmt.Errorf("confirming registration: %w", err)
	}
	if !registered {
		return false, ErrRegistrationNotConfirmed
	}
	logging.FromContext(ctx).Info("registered")
	return true, nil
}

// BurnedRegister registers the wallet's hotkey on netuid by paying the registration cost.
func (r *Registrar) BurnedRegister(
	ctx context.Context,
	wallet *signing.Wallet,
	netuid uint16,
	opts ...RegisterOptionFunc,
) (bool, error) {
	options := r.registerOptions(opts)
	hotkey := wallet.HotkeyID()
	logger := logging.FromContext(ctx).Named("burned-registration").With(
		zap.Uint16("netuid", netuid),
		zap.Stringer("hotkey", hotkey),
	)
	ctx = logging.NewContext(ctx, logger)

	done, err := r.checkPreconditions(ctx, hotkey, netuid)
	if err != nil || done {
		return done, err
	}
	call, err := r.chain.ComposeCall(ctx, chain.Module, chain.FuncBurnedRegister, chain.Params{
		{Name: "netuid", Value: netuid},
		{Name: "hotkey", Value: hotkey},
	})
	if err != nil {
		return false, fmt.Errorf("composing burned_register call: %w", err)
	}
	result := r.chain.SignAndSendExtrinsic(ctx, call, wallet, options.sendOptions())
	switch {
	case result.Success():
		attemptsMetric.WithLabelValues("burned", "accepted").Inc()
		if !options.waits() {
			return true, nil
		}
		return r.confirm(ctx, netuid, hotkey)
	case strings.Contains(result.Error, chain.AlreadyRegisteredError):
		attemptsMetric.WithLabelValues("burned", "already_registered").Inc()
		return true, nil
	default:
		attemptsMetric.WithLabelValues("burned", "rejected").Inc()
		logger.Warn("burned registration rejected", zap.String("error", result.Error))
		return false, fmt.Errorf("burned registration: %s", result.Error)
	}
}
