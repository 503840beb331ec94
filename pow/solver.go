// Package pow solves subtensor registration puzzles.
package pow

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/shared"
	"github.com/subtensor-tools/subreg/ss58"
)

var (
	// ErrHotkeyRegistered is returned when the hotkey got registered while solving.
	ErrHotkeyRegistered = errors.New("hotkey registered while solving")
	ErrNoAccelerator    = errors.New("accelerator is not available")

	hashesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subreg",
		Subsystem: "pow",
		Name:      "hashes_total",
		Help:      "Number of registration seals computed",
	}, []string{"device"})

	reanchorMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "subreg",
		Subsystem: "pow",
		Name:      "reanchors_total",
		Help:      "Number of times a search moved to a newer block",
	})
)

//go:generate mockgen -package mocks -destination mocks/solver.go . Chain,Accelerator

// Chain is the chain state a solver reads.
type Chain interface {
	GetCurrentBlock(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, number uint64) (chain.Hash, error)
	Difficulty(ctx context.Context, netuid uint16) (uint64, error)
	IsHotkeyRegistered(ctx context.Context, netuid uint16, hotkey ss58.AccountID) (bool, error)
}

// Accelerator searches nonces on GPU devices.
type Accelerator interface {
	Available(ids []int) bool
	// Search checks count nonces from start and reports the first solving one.
	Search(
		ctx context.Context,
		blockAndHotkey []byte,
		difficulty, start, count uint64,
		ids []int,
		tpb int,
	) (nonce uint64, seal []byte, found bool, err error)
}

func DefaultConfig() Config {
	return Config{
		NumProcesses:   defaultNumProcesses(),
		UpdateInterval: 50_000,
		TPB:            256,
	}
}

//nolint:lll
type Config struct {
	NumProcesses   int    `long:"processes"       description:"number of CPU workers searching for a nonce"`
	UpdateInterval uint64 `long:"update-interval" description:"nonces every worker checks before the head is read again"`
	TPB            int    `long:"tpb"             description:"threads per block when solving on a GPU"`
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("processes", c.NumProcesses)
	enc.AddUint64("update_interval", c.UpdateInterval)
	enc.AddInt("tpb", c.TPB)
	return nil
}

// Solver finds registration nonces for the newest block.
type Solver struct {
	chain Chain
	accel Accelerator
	cfg   Config
}

type newSolverOptionFunc func(*newSolverOptions)

type newSolverOptions struct {
	accel Accelerator
	cfg   Config
}

func WithAccelerator(accel Accelerator) newSolverOptionFunc {
	return func(opts *newSolverOptions) {
		opts.accel = accel
	}
}

func WithConfig(cfg Config) newSolverOptionFunc {
	return func(opts *newSolverOptions) {
		opts.cfg = cfg
	}
}

func NewSolver(c Chain, opts ...newSolverOptionFunc) *Solver {
	options := newSolverOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.cfg.NumProcesses <= 0 {
		options.cfg.NumProcesses = 1
	}
	if options.cfg.UpdateInterval == 0 {
		options.cfg.UpdateInterval = DefaultConfig().UpdateInterval
	}
	return &Solver{chain: c, accel: options.accel, cfg: options.cfg}
}

// Available reports whether d can be used for solving.
func (s *Solver) Available(d Device) bool {
	if !d.IsGPU() {
		return true
	}
	return s.accel != nil && s.accel.Available(d.ids)
}

type anchor struct {
	block          uint64
	hash           chain.Hash
	difficulty     uint64
	blockAndHotkey []byte
}

// Solve searches for a seal for hotkey on netuid.
// The search is re-anchored whenever the chain moves to a new block,
// and aborted with ErrHotkeyRegistered once the hotkey holds a slot.
func (s *Solver) Solve(ctx context.Context, netuid uint16, hotkey ss58.AccountID, device Device) (*shared.Solution, error) {
	if !s.Available(device) {
		return nil, fmt.Errorf("%w: %s", ErrNoAccelerator, device)
	}
	logger := logging.FromContext(ctx).Named("pow").With(
		zap.Uint16("netuid", netuid),
		zap.Stringer("device", device),
	)

	var current *anchor
	nonce := rand.Uint64()
	for {
		block, err := s.chain.GetCurrentBlock(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading current block: %w", err)
		}
		if current == nil || current.block != block {
			if current != nil {
				reanchorMetric.Inc()
			}
			current, err = s.anchor(ctx, netuid, hotkey, block)
			if err != nil {
				return nil, err
			}
			logger.Debug("searching",
				zap.Uint64("block", block),
				zap.Uint64("difficulty", current.difficulty),
				zap.Uint64("start_nonce", nonce),
			)
		}

		var sol *shared.Solution
		var checked uint64
		if device.IsGPU() {
			sol, checked, err = s.searchGPU(ctx, current, device, nonce)
		} else {
			sol, checked, err = s.searchCPU(ctx, current, nonce)
		}
		hashesMetric.WithLabelValues(device.String()).Add(float64(checked))
		if err != nil {
			return nil, err
		}
		if sol != nil {
			logger.Info("found registration nonce", zap.Object("solution", sol))
			return sol, nil
		}
		nonce += checked

		registered, err := s.chain.IsHotkeyRegistered(ctx, netuid, hotkey)
		if err != nil {
			return nil, fmt.Errorf("checking registration: %w", err)
		}
		if registered {
			return nil, ErrHotkeyRegistered
		}
	}
}

func (s *Solver) anchor(ctx context.Context, netuid uint16, hotkey ss58.AccountID, block uint64) (*anchor, error) {
	hash, err := s.chain.GetBlockHash(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("reading hash of block %d: %w", block, err)
	}
	difficulty, err := s.chain.Difficulty(ctx, netuid)
	if err != nil {
		return nil, fmt.Errorf("reading difficulty: %w", err)
	}
	return &anchor{
		block:          block,
		hash:           hash,
		difficulty:     difficulty,
		blockAndHotkey: shared.BlockAndHotkeyHash(hash[:], hotkey[:]),
	}, nil
}

// searchChunk is how many nonces a CPU worker checks between cancellation checks.
const searchChunk = 4096

// searchCPU runs one batch of UpdateInterval nonces on every worker.
// All workers stop once one of them finds a seal.
func (s *Solver) searchCPU(ctx context.Context, a *anchor, start uint64) (*shared.Solution, uint64, error) {
	var (
		once    sync.Once
		best    *shared.Solution
		checked atomic.Uint64
		eg      errgroup.Group
	)
	searchCtx, stop := context.WithCancel(ctx)
	defer stop()

	interval := s.cfg.UpdateInterval
	for i := 0; i < s.cfg.NumProcesses; i++ {
		from := start + uint64(i)*interval
		eg.Go(func() error {
			p := shared.NewSealHasher(a.blockAndHotkey)
			for done := uint64(0); done < interval && searchCtx.Err() == nil; {
				n := interval - done
				if n > searchChunk {
					n = searchChunk
				}
				nonce, seal, found := shared.SearchSealNonce(p, a.difficulty, from+done, n)
				if !found {
					checked.Add(n)
					done += n
					continue
				}
				checked.Add(nonce - (from + done) + 1)
				once.Do(func() {
					best = &shared.Solution{BlockNumber: a.block, Nonce: nonce, Seal: seal, Difficulty: a.difficulty}
					stop()
				})
				return nil
			}
			return nil
		})
	}
	_ = eg.Wait()
	if best != nil {
		return best, checked.Load(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, checked.Load(), err
	}
	return nil, checked.Load(), nil
}

func (s *Solver) searchGPU(ctx context.Context, a *anchor, device Device, start uint64) (*shared.Solution, uint64, error) {
	count := uint64(s.cfg.NumProcesses) * s.cfg.UpdateInterval
	nonce, seal, found, err := s.accel.Search(ctx, a.blockAndHotkey, a.difficulty, start, count, device.ids, s.cfg.TPB)
	if err != nil {
		return nil, 0, fmt.Errorf("accelerator search: %w", err)
	}
	if !found {
		return nil, count, nil
	}
	return &shared.Solution{BlockNumber: a.block, Nonce: nonce, Seal: seal, Difficulty: a.difficulty}, count, nil
}
