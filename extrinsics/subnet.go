package extrinsics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/signing"
)

// ErrRejected is returned when the chain refuses an extrinsic.
var ErrRejected = errors.New("extrinsic rejected")

// RegisterSubnet creates a new subnet owned by the wallet's coldkey with the wallet's hotkey as its first neuron.
func RegisterSubnet(ctx context.Context, c chain.Client, wallet *signing.Wallet, opts ...OptionFunc) (bool, error) {
	options := applyOptions(options{waitForFinalization: true}, opts)
	logger := logging.FromContext(ctx).Named("register-subnet")

	call, err := c.ComposeCall(ctx, chain.Module, chain.FuncRegisterNetwork, chain.Params{
		{Name: "hotkey", Value: wallet.HotkeyID()},
	})
	if err != nil {
		return false, fmt.Errorf("composing %s call: %w", chain.FuncRegisterNetwork, err)
	}
	result := c.SignAndSendExtrinsic(ctx, call, wallet, options.sendOptions(signing.Coldkey))
	if !result.Success() {
		logger.Warn("subnet registration rejected", zap.String("error", result.Error))
		return false, fmt.Errorf("%w: %s", ErrRejected, result.Error)
	}
	logger.Info("registered subnet", zap.Object("result", result))
	return true, nil
}
