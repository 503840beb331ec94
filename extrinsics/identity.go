package extrinsics

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
)

// SubnetIdentity is the public description of a subnet. Fields are sent as is.
type SubnetIdentity struct {
	SubnetName    string `long:"name"        description:"subnet name"`
	GithubRepo    string `long:"github-repo" description:"source repository"`
	SubnetContact string `long:"contact"     description:"owner contact"`
	SubnetURL     string `long:"url"         description:"subnet website"`
	LogoURL       string `long:"logo-url"    description:"subnet logo"`
	Discord       string `long:"discord"     description:"discord handle or invite"`
	Description   string `long:"description" description:"short description"`
	Additional    string `long:"additional"  description:"additional information"`
}

// implement zap.ObjectMarshaler interface.
func (s SubnetIdentity) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("subnet_name", s.SubnetName)
	enc.AddString("github_repo", s.GithubRepo)
	enc.AddString("subnet_url", s.SubnetURL)
	return nil
}

func (s SubnetIdentity) params(hotkey ss58.AccountID, netuid uint16) chain.Params {
	return chain.Params{
		{Name: "hotkey", Value: hotkey},
		{Name: "netuid", Value: netuid},
		{Name: "subnet_name", Value: s.SubnetName},
		{Name: "github_repo", Value: s.GithubRepo},
		{Name: "subnet_contact", Value: s.SubnetContact},
		{Name: "subnet_url", Value: s.SubnetURL},
		{Name: "logo_url", Value: s.LogoURL},
		{Name: "discord", Value: s.Discord},
		{Name: "description", Value: s.Description},
		{Name: "additional", Value: s.Additional},
	}
}

// SetSubnetIdentity publishes the identity of subnet netuid, signed by the wallet's coldkey.
// It waits for finalization unless told otherwise and never retries.
func SetSubnetIdentity(
	ctx context.Context,
	c chain.Client,
	wallet *signing.Wallet,
	netuid uint16,
	identity SubnetIdentity,
	opts ...OptionFunc,
) (bool, string) {
	options := applyOptions(options{waitForFinalization: true}, opts)
	logger := logging.FromContext(ctx).Named("identity").With(zap.Uint16("netuid", netuid))

	call, err := c.ComposeCall(ctx, chain.Module, chain.FuncSetSubnetIdentity, identity.params(wallet.HotkeyID(), netuid))
	if err != nil {
		return false, fmt.Sprintf("Failed to set identity for subnet %d: %v", netuid, err)
	}
	logger.Debug("setting subnet identity", zap.Object("identity", identity))
	result := c.SignAndSendExtrinsic(ctx, call, wallet, options.sendOptions(signing.Coldkey))
	if !options.waits() && result.Success() {
		return true, chain.NotWaitingMessage
	}
	if result.Success() {
		msg := fmt.Sprintf("Identities for subnet %d are set.", netuid)
		logger.Info(msg)
		return true, msg
	}
	msg := fmt.Sprintf("Failed to set identity for subnet %d: %s", netuid, result.Error)
	logger.Warn(msg)
	return false, msg
}
