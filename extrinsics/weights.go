package extrinsics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/signing"
)

var (
	ErrLengthMismatch = errors.New("uids and weights differ in length")
	ErrInvalidWeight  = errors.New("weights must be finite and non-negative")
)

const (
	DefaultWeightsRetries = 5
	// DefaultWeightsPeriod keeps weights extrinsics alive for 8 blocks.
	DefaultWeightsPeriod = 8
)

// WeightsChain is the chain access needed to set weights.
type WeightsChain interface {
	chain.Client
	chain.Querier
}

// NormalizeWeights scales weights so that the largest becomes math.MaxUint16.
// Entries that round to zero are dropped together with their uids.
func NormalizeWeights(uids []uint16, weights []float64) ([]uint16, []uint16, error) {
	if len(uids) != len(weights) {
		return nil, nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(uids), len(weights))
	}
	invalid := func(w float64) bool { return w < 0 || math.IsNaN(w) || math.IsInf(w, 0) }
	if i := slices.IndexFunc(weights, invalid); i >= 0 {
		return nil, nil, fmt.Errorf("%w: uid %d has weight %v", ErrInvalidWeight, uids[i], weights[i])
	}
	var maxWeight float64
	for _, w := range weights {
		maxWeight = math.Max(maxWeight, w)
	}
	if maxWeight == 0 {
		return []uint16{}, []uint16{}, nil
	}

	dests := make([]uint16, 0, len(uids))
	vals := make([]uint16, 0, len(uids))
	for i, w := range weights {
		v := uint16(math.Round(w / maxWeight * math.MaxUint16))
		if v == 0 {
			continue
		}
		dests = append(dests, uids[i])
		vals = append(vals, v)
	}
	return dests, vals, nil
}

// SetWeights submits the validator weights of the wallet's hotkey on netuid.
// It retries rejected submissions up to WithMaxRetries times (DefaultWeightsRetries by default).
func SetWeights(
	ctx context.Context,
	c WeightsChain,
	wallet *signing.Wallet,
	netuid uint16,
	uids []uint16,
	weights []float64,
	opts ...OptionFunc,
) (bool, string) {
	options := applyOptions(options{
		period:     DefaultWeightsPeriod,
		maxRetries: DefaultWeightsRetries,
	}, opts)
	hotkey := wallet.HotkeyID()
	logger := logging.FromContext(ctx).Named("weights").With(zap.Uint16("netuid", netuid))

	neuron, err := c.GetNeuronForPubkeyAndSubnet(ctx, hotkey, netuid, chain.Hash{})
	if err != nil {
		return false, fmt.Sprintf("querying neuron: %v", err)
	}
	if neuron.IsNull() {
		return false, fmt.Sprintf("Hotkey %s not registered in subnet %d", hotkey, netuid)
	}
	dests, vals, err := NormalizeWeights(uids, weights)
	if err != nil {
		return false, err.Error()
	}

	message := "No attempt made. Perhaps it is too soon to set weights!"
	for attempt := uint(1); attempt <= options.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return false, ctx.Err().Error()
		}
		logger.Info("setting weights",
			zap.Uint16("uid", neuron.UID),
			zap.Uint("attempt", attempt),
			zap.Uint("max_retries", options.maxRetries),
		)
		call, err := c.ComposeCall(ctx, chain.Module, chain.FuncSetWeights, chain.Params{
			{Name: "netuid", Value: netuid},
			{Name: "dests", Value: dests},
			{Name: "weights", Value: vals},
			{Name: "version_key", Value: options.versionKey},
		})
		if err != nil {
			return false, fmt.Sprintf("composing %s call: %v", chain.FuncSetWeights, err)
		}
		result := c.SignAndSendExtrinsic(ctx, call, wallet, options.sendOptions(signing.Hotkey))
		switch {
		case result.Success() && !options.waits():
			return true, chain.NotWaitingMessage
		case result.Success():
			return true, "Successfully set weights."
		}
		logger.Warn("setting weights failed", zap.String("error", result.Error))
		message = result.Error
	}
	return false, message
}
