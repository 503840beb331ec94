package registration_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/pow"
	"github.com/subtensor-tools/subreg/registration"
	"github.com/subtensor-tools/subreg/registration/mocks"
	"github.com/subtensor-tools/subreg/shared"
	"github.com/subtensor-tools/subreg/signing"
)

const netuid = uint16(3)

func testWallet(t *testing.T) *signing.Wallet {
	t.Helper()
	cold, err := signing.FromSeed(signing.Ed25519, bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	hot, err := signing.FromSeed(signing.Ed25519, bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	return signing.NewWallet("test", cold, hot)
}

func testContext(t *testing.T) context.Context {
	return logging.NewContext(context.Background(), zaptest.NewLogger(t))
}

type fixture struct {
	chain  *mocks.MockChain
	solver *mocks.MockSolver
	wallet *signing.Wallet
	head   chain.Hash
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	return &fixture{
		chain:  mocks.NewMockChain(ctrl),
		solver: mocks.NewMockSolver(ctrl),
		wallet: testWallet(t),
		head:   chain.Hash{0xaa},
	}
}

func (f *fixture) expectUnregistered() {
	f.chain.EXPECT().GetChainHead(gomock.Any()).Return(f.head, nil).AnyTimes()
	f.chain.EXPECT().SubnetExists(gomock.Any(), netuid, f.head).Return(true, nil).AnyTimes()
	f.chain.EXPECT().
		GetNeuronForPubkeyAndSubnet(gomock.Any(), f.wallet.HotkeyID(), netuid, f.head).
		Return(chain.Neuron{}, nil).
		AnyTimes()
}

func freshSolution() *shared.Solution {
	return &shared.Solution{BlockNumber: 100, Nonce: 7, Seal: bytes.Repeat([]byte{0x01}, 32), Difficulty: 10}
}

func TestRegisterFailingSubmissionsAreBounded(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Solve(gomock.Any(), netuid, f.wallet.HotkeyID(), pow.CPU()).Return(freshSolution(), nil).Times(4)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(100), nil).Times(4)
	f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncRegister, gomock.Any()).
		Return(&chain.Call{Module: chain.Module, Function: chain.FuncRegister}, nil).
		Times(4)
	f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, gomock.Any()).
		Return(chain.Failed("Custom error: InvalidDifficulty")).
		Times(4)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid, registration.WithMaxAttempts(4))
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrMaxAttemptsReached)
	require.ErrorContains(t, err, "InvalidDifficulty")
}

func TestRegisterAlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	f.chain.EXPECT().GetChainHead(gomock.Any()).Return(f.head, nil)
	f.chain.EXPECT().SubnetExists(gomock.Any(), netuid, f.head).Return(true, nil)
	f.chain.EXPECT().
		GetNeuronForPubkeyAndSubnet(gomock.Any(), f.wallet.HotkeyID(), netuid, f.head).
		Return(chain.NewNeuron(5, netuid, f.wallet.HotkeyID(), f.wallet.ColdkeyID()), nil)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegisterSubnetMissing(t *testing.T) {
	f := newFixture(t)
	f.chain.EXPECT().GetChainHead(gomock.Any()).Return(f.head, nil)
	f.chain.EXPECT().SubnetExists(gomock.Any(), netuid, f.head).Return(false, nil)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid)
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrSubnetNotFound)
}

func TestRegisterIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.chain.EXPECT().GetChainHead(gomock.Any()).Return(f.head, nil).Times(2)
	f.chain.EXPECT().SubnetExists(gomock.Any(), netuid, f.head).Return(true, nil).Times(2)
	gomock.InOrder(
		f.chain.EXPECT().
			GetNeuronForPubkeyAndSubnet(gomock.Any(), f.wallet.HotkeyID(), netuid, f.head).
			Return(chain.Neuron{}, nil),
		f.chain.EXPECT().
			GetNeuronForPubkeyAndSubnet(gomock.Any(), f.wallet.HotkeyID(), netuid, f.head).
			Return(chain.NewNeuron(0, netuid, f.wallet.HotkeyID(), f.wallet.ColdkeyID()), nil),
	)
	f.solver.EXPECT().Solve(gomock.Any(), netuid, f.wallet.HotkeyID(), pow.CPU()).Return(freshSolution(), nil)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(101), nil)
	f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncRegister, gomock.Any()).
		Return(&chain.Call{}, nil)
	f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, gomock.Any()).
		Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusFinalized})
	f.chain.EXPECT().IsHotkeyRegistered(gomock.Any(), netuid, f.wallet.HotkeyID()).Return(true, nil)

	r := registration.New(f.chain, f.solver)
	for i := 0; i < 2; i++ {
		ok, err := r.Register(testContext(t), f.wallet, netuid)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestRegisterStaleSolutionsDoNotConsumeAttempts(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()

	stale := &shared.Solution{BlockNumber: 0, Nonce: 1, Seal: make([]byte, 32)}
	gomock.InOrder(
		f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(stale, nil).Times(3),
		f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(freshSolution(), nil).Times(3),
	)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(100), nil).Times(6)
	f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncRegister, gomock.Any()).
		Return(&chain.Call{}, nil).
		Times(3)
	f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, gomock.Any()).
		Return(chain.Failed("Priority is too low")).
		Times(3)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid, registration.WithMaxAttempts(3))
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrMaxAttemptsReached)
}

func TestRegisterStaleRecomputesCap(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()

	stale := &shared.Solution{BlockNumber: 0, Nonce: 1, Seal: make([]byte, 32)}
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(stale, nil).Times(4)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(100), nil).Times(4)

	cfg := registration.DefaultConfig()
	cfg.MaxStaleRecomputes = 2
	r := registration.New(f.chain, f.solver, registration.WithConfig(cfg))
	ok, err := r.Register(testContext(t), f.wallet, netuid, registration.WithMaxAttempts(2))
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrMaxAttemptsReached)
	require.ErrorContains(t, err, "stale")
}

func TestRegisterAlreadyRegisteredRejection(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(freshSolution(), nil)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(100), nil)

	var submitted chain.Params
	f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncRegister, gomock.Any()).
		DoAndReturn(func(_ context.Context, module, function string, params chain.Params) (*chain.Call, error) {
			submitted = params
			return &chain.Call{Module: module, Function: function, Params: params}, nil
		})
	f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, chain.SendOptions{
		WaitForFinalization: true,
		SignWith:            signing.Coldkey,
	}).Return(chain.Failed("SubtensorModule.%s", chain.AlreadyRegisteredError))

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid)
	require.NoError(t, err)
	require.True(t, ok)

	names := make([]string, 0, len(submitted))
	for _, p := range submitted {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"netuid", "block_number", "nonce", "work", "hotkey", "coldkey"}, names)
	hotkey, _ := submitted.Get("hotkey")
	require.Equal(t, f.wallet.HotkeyID(), hotkey)
	coldkey, _ := submitted.Get("coldkey")
	require.Equal(t, f.wallet.ColdkeyID(), coldkey)
}

func TestRegisterAcceleratorUnavailable(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Available(pow.GPU(0)).Return(false)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid, registration.WithDevice(pow.GPU(0)))
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrAcceleratorUnavailable)
}

func TestRegisterObservedWhileSolving(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(nil, pow.ErrHotkeyRegistered)
	f.chain.EXPECT().IsHotkeyRegistered(gomock.Any(), netuid, f.wallet.HotkeyID()).Return(true, nil)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegisterNotConfirmed(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(freshSolution(), nil)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(100), nil)
	f.chain.EXPECT().ComposeCall(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&chain.Call{}, nil)
	f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusFinalized})
	f.chain.EXPECT().IsHotkeyRegistered(gomock.Any(), netuid, f.wallet.HotkeyID()).Return(false, nil)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid)
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrRegistrationNotConfirmed)
}

func TestRegisterNoWaitSkipsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).Return(freshSolution(), nil)
	f.chain.EXPECT().GetCurrentBlock(gomock.Any()).Return(uint64(100), nil)
	f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncRegister, gomock.Any()).Return(&chain.Call{}, nil)
	f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, chain.SendOptions{
		SignWith: signing.Coldkey,
	}).Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusSubmitted})
	f.chain.EXPECT().IsHotkeyRegistered(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid,
		registration.WithWaitForInclusion(false),
		registration.WithWaitForFinalization(false),
	)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRegisterSolverErrorConsumesAttempt(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).
		Return(nil, errors.New("difficulty unavailable")).
		Times(2)

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(testContext(t), f.wallet, netuid, registration.WithMaxAttempts(2))
	require.False(t, ok)
	require.ErrorIs(t, err, registration.ErrMaxAttemptsReached)
	require.ErrorContains(t, err, "difficulty unavailable")
}

func TestRegisterCancelled(t *testing.T) {
	f := newFixture(t)
	f.expectUnregistered()

	ctx, cancel := context.WithCancel(testContext(t))
	f.solver.EXPECT().Solve(gomock.Any(), netuid, gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, any, any, any) (*shared.Solution, error) {
			cancel()
			return nil, context.Canceled
		})

	r := registration.New(f.chain, f.solver)
	ok, err := r.Register(ctx, f.wallet, netuid)
	require.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBurnedRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.expectUnregistered()
		f.chain.EXPECT().
			ComposeCall(gomock.Any(), chain.Module, chain.FuncBurnedRegister, chain.Params{
				{Name: "netuid", Value: netuid},
				{Name: "hotkey", Value: f.wallet.HotkeyID()},
			}).
			Return(&chain.Call{}, nil)
		f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, gomock.Any()).
			Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusFinalized})
		f.chain.EXPECT().IsHotkeyRegistered(gomock.Any(), netuid, f.wallet.HotkeyID()).Return(true, nil)

		ok, err := registration.New(f.chain, f.solver).BurnedRegister(testContext(t), f.wallet, netuid)
		require.NoError(t, err)
		require.True(t, ok)
	})
	t.Run("no wait skips confirmation", func(t *testing.T) {
		f := newFixture(t)
		f.expectUnregistered()
		f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncBurnedRegister, gomock.Any()).
			Return(&chain.Call{}, nil)
		f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, gomock.Any()).
			Return(chain.SubmissionResult{Accepted: true, Status: chain.StatusSubmitted})

		ok, err := registration.New(f.chain, f.solver).BurnedRegister(
			testContext(t), f.wallet, netuid,
			registration.WithWaitForFinalization(false),
		)
		require.NoError(t, err)
		require.True(t, ok)
	})
	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t)
		f.expectUnregistered()
		f.chain.EXPECT().ComposeCall(gomock.Any(), chain.Module, chain.FuncBurnedRegister, gomock.Any()).
			Return(&chain.Call{}, nil)
		f.chain.EXPECT().SignAndSendExtrinsic(gomock.Any(), gomock.Any(), f.wallet, gomock.Any()).
			Return(chain.Failed("NotEnoughBalanceToStake"))

		ok, err := registration.New(f.chain, f.solver).BurnedRegister(testContext(t), f.wallet, netuid)
		require.False(t, ok)
		require.ErrorContains(t, err, "NotEnoughBalanceToStake")
	})
}
