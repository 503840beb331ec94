package extrinsics_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/chain/mocks"
	"github.com/subtensor-tools/subreg/extrinsics"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/signing"
)

func testWallet(t *testing.T) *signing.Wallet {
	t.Helper()
	cold, err := signing.FromSeed(signing.Ed25519, bytes.Repeat([]byte{3}, 32))
	require.NoError(t, err)
	hot, err := signing.FromSeed(signing.Sr25519, bytes.Repeat([]byte{4}, 32))
	require.NoError(t, err)
	return signing.NewWallet("owner", cold, hot)
}

func testContext(t *testing.T) context.Context {
	return logging.NewContext(context.Background(), zaptest.NewLogger(t))
}

var identity = extrinsics.SubnetIdentity{
	SubnetName:    "apex",
	GithubRepo:    "https://github.com/example/apex",
	SubnetContact: "owner@example.org",
	SubnetURL:     "https://apex.example.org",
	LogoURL:       "https://apex.example.org/logo.png",
	Discord:       "apex#0001",
	Description:   "text prompting",
	Additional:    "",
}

func TestSetSubnetIdentity(t *testing.T) {
	wallet := testWallet(t)

	t.Run("success", func(t *testing.T) {
		client := mocks.NewMockClient(gomock.NewController(t))
		client.EXPECT().
			ComposeCall(gomock.Any(), chain.Module, chain.FuncSetSubnetIdentity, gomock.Any()).
			DoAndReturn(func(_ context.Context, module, function string, params chain.Params) (*chain.Call, error) {
				names := make([]string, 0, len(params))
				for _, p := range params {
					names = append(names, p.Name)
				}
				require.Equal(t, []string{
					"hotkey", "netuid", "subnet_name", "github_repo", "subnet_contact",
					"subnet_url", "logo_url", "discord", "description", "additional",
				}, names)
				hotkey, _ := params.Get("hotkey")
				require.Equal(t, wallet.HotkeyID(), hotkey)
				name, _ := params.Get("subnet_name")
				require.Equal(t, "apex", name)
				return &chain.Call{Module: module, Function: function, Params: params}, nil
			})
		client.EXPECT().
			SignAndSendExtrinsic(gomock.Any(), gomock.Any(), wallet, chain.SendOptions{
				WaitForFinalization: true,
				SignWith:            signing.Coldkey,
			}).
			Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusFinalized})

		ok, msg := extrinsics.SetSubnetIdentity(testContext(t), client, wallet, 7, identity)
		require.True(t, ok)
		require.Equal(t, "Identities for subnet 7 are set.", msg)
	})
	t.Run("failure", func(t *testing.T) {
		client := mocks.NewMockClient(gomock.NewController(t))
		client.EXPECT().ComposeCall(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&chain.Call{}, nil)
		client.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(chain.Failed("boom")).
			Times(1)

		ok, msg := extrinsics.SetSubnetIdentity(testContext(t), client, wallet, 7, identity)
		require.False(t, ok)
		require.Equal(t, "Failed to set identity for subnet 7: boom", msg)
	})
	t.Run("not waiting", func(t *testing.T) {
		client := mocks.NewMockClient(gomock.NewController(t))
		client.EXPECT().ComposeCall(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&chain.Call{}, nil)
		client.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), gomock.Any(), chain.SendOptions{
			SignWith: signing.Coldkey,
			Period:   16,
		}).Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusSubmitted})

		ok, msg := extrinsics.SetSubnetIdentity(
			testContext(t), client, wallet, 7, identity,
			extrinsics.WithWaitForFinalization(false),
			extrinsics.WithPeriod(16),
		)
		require.True(t, ok)
		require.Equal(t, chain.NotWaitingMessage, msg)
	})
}

func TestRegisterSubnet(t *testing.T) {
	wallet := testWallet(t)

	client := mocks.NewMockClient(gomock.NewController(t))
	client.EXPECT().
		ComposeCall(gomock.Any(), chain.Module, chain.FuncRegisterNetwork, chain.Params{
			{Name: "hotkey", Value: wallet.HotkeyID()},
		}).
		Return(&chain.Call{}, nil).
		Times(2)
	gomock.InOrder(
		client.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), wallet, gomock.Any()).
			Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusFinalized}),
		client.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), wallet, gomock.Any()).
			Return(chain.Failed("NetworkTxRateLimitExceeded")),
	)

	ok, err := extrinsics.RegisterSubnet(testContext(t), client, wallet)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = extrinsics.RegisterSubnet(testContext(t), client, wallet)
	require.False(t, ok)
	require.ErrorIs(t, err, extrinsics.ErrRejected)
	require.ErrorContains(t, err, "NetworkTxRateLimitExceeded")
}

func TestNormalizeWeights(t *testing.T) {
	t.Run("max becomes u16 max", func(t *testing.T) {
		dests, vals, err := extrinsics.NormalizeWeights([]uint16{0, 1, 2, 3}, []float64{0.5, 1, 0, 0.25})
		require.NoError(t, err)
		require.Equal(t, []uint16{0, 1, 3}, dests)
		require.Equal(t, []uint16{32768, math.MaxUint16, 16384}, vals)
	})
	t.Run("all zero", func(t *testing.T) {
		dests, vals, err := extrinsics.NormalizeWeights([]uint16{0, 1}, []float64{0, 0})
		require.NoError(t, err)
		require.Empty(t, dests)
		require.Empty(t, vals)
	})
	t.Run("length mismatch", func(t *testing.T) {
		_, _, err := extrinsics.NormalizeWeights([]uint16{0}, []float64{1, 2})
		require.ErrorIs(t, err, extrinsics.ErrLengthMismatch)
	})
	t.Run("negative", func(t *testing.T) {
		_, _, err := extrinsics.NormalizeWeights([]uint16{0, 1}, []float64{1, -2})
		require.ErrorIs(t, err, extrinsics.ErrInvalidWeight)
	})
	t.Run("not finite", func(t *testing.T) {
		for _, w := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
			_, _, err := extrinsics.NormalizeWeights([]uint16{0, 1}, []float64{1, w})
			require.ErrorIs(t, err, extrinsics.ErrInvalidWeight, "weight %v", w)
			require.ErrorContains(t, err, "uid 1")
		}
	})
}

type weightsChain struct {
	*mocks.MockClient
	*mocks.MockQuerier
}

func newWeightsChain(t *testing.T) weightsChain {
	ctrl := gomock.NewController(t)
	return weightsChain{mocks.NewMockClient(ctrl), mocks.NewMockQuerier(ctrl)}
}

func TestSetWeights(t *testing.T) {
	wallet := testWallet(t)

	t.Run("retries until accepted", func(t *testing.T) {
		c := newWeightsChain(t)
		c.MockQuerier.EXPECT().
			GetNeuronForPubkeyAndSubnet(gomock.Any(), wallet.HotkeyID(), uint16(1), chain.Hash{}).
			Return(chain.NewNeuron(4, 1, wallet.HotkeyID(), wallet.ColdkeyID()), nil)
		c.MockClient.EXPECT().
			ComposeCall(gomock.Any(), chain.Module, chain.FuncSetWeights, chain.Params{
				{Name: "netuid", Value: uint16(1)},
				{Name: "dests", Value: []uint16{0, 2}},
				{Name: "weights", Value: []uint16{math.MaxUint16, 32768}},
				{Name: "version_key", Value: uint64(9)},
			}).
			Return(&chain.Call{}, nil).
			Times(2)
		sendOpts := chain.SendOptions{
			WaitForInclusion: true,
			Period:           extrinsics.DefaultWeightsPeriod,
			SignWith:         signing.Hotkey,
		}
		gomock.InOrder(
			c.MockClient.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), wallet, sendOpts).
				Return(chain.Failed("SettingWeightsTooFast")),
			c.MockClient.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), wallet, sendOpts).
				Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusInBlock}),
		)

		ok, msg := extrinsics.SetWeights(
			testContext(t), c, wallet, 1,
			[]uint16{0, 1, 2}, []float64{2, 0, 1},
			extrinsics.WithVersionKey(9),
			extrinsics.WithWaitForInclusion(true),
		)
		require.True(t, ok, msg)
	})
	t.Run("gives up after max retries", func(t *testing.T) {
		c := newWeightsChain(t)
		c.MockQuerier.EXPECT().
			GetNeuronForPubkeyAndSubnet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(chain.NewNeuron(4, 1, wallet.HotkeyID(), wallet.ColdkeyID()), nil)
		c.MockClient.EXPECT().ComposeCall(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&chain.Call{}, nil).
			Times(2)
		c.MockClient.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(chain.Failed("SettingWeightsTooFast")).
			Times(2)

		ok, msg := extrinsics.SetWeights(
			testContext(t), c, wallet, 1,
			[]uint16{0}, []float64{1},
			extrinsics.WithMaxRetries(2),
		)
		require.False(t, ok)
		require.Equal(t, "SettingWeightsTooFast", msg)
	})
	t.Run("hotkey not registered", func(t *testing.T) {
		c := newWeightsChain(t)
		c.MockQuerier.EXPECT().
			GetNeuronForPubkeyAndSubnet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(chain.Neuron{}, nil)

		ok, msg := extrinsics.SetWeights(testContext(t), c, wallet, 1, []uint16{0}, []float64{1})
		require.False(t, ok)
		require.Contains(t, msg, "not registered in subnet 1")
	})
}
