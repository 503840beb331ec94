package journal_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/chain/mocks"
	"github.com/subtensor-tools/subreg/journal"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/signing"
)

func openJournal(t *testing.T) *journal.Journal {
	j, err := journal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, j.Close()) })
	return j
}

func TestSaveGetList(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	call := &chain.Call{Module: chain.Module, Function: chain.FuncRegister}
	var ids []string
	for i := 0; i < 3; i++ {
		r := journal.NewRecord(call, "5Signer", chain.DefaultSendOptions(), chain.SubmissionResult{
			Accepted:      true,
			Status:        chain.StatusInBlock,
			ExtrinsicHash: chain.Hash{byte(i + 1)},
		})
		r.UnixNano = int64(1000 + i)
		require.NoError(t, j.Save(ctx, r))
		ids = append(ids, r.ID)
	}

	got, err := j.Get(ctx, ids[1])
	require.NoError(t, err)
	require.Equal(t, ids[1], got.ID)
	require.Equal(t, "register", got.Function)
	require.Equal(t, "coldkey", got.SignWith)
	require.Equal(t, chain.Hash{2}.String(), got.ExtrinsicHash)
	require.Empty(t, got.BlockHash)
	require.True(t, got.Success())

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, ids[2], all[0].ID)
	require.Equal(t, ids[0], all[2].ID)

	latest, err := j.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, ids[2], latest[0].ID)

	_, err = j.Get(ctx, "missing")
	require.ErrorIs(t, err, journal.ErrNotFound)
}

func TestRecorder(t *testing.T) {
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	j := openJournal(t)

	cold, err := signing.FromSeed(signing.Ed25519, bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	hot, err := signing.FromSeed(signing.Ed25519, bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	wallet := signing.NewWallet("w", cold, hot)

	client := mocks.NewMockClient(gomock.NewController(t))
	call := &chain.Call{Module: chain.Module, Function: chain.FuncSetWeights}
	opts := chain.SendOptions{WaitForInclusion: true, SignWith: signing.Hotkey}
	client.EXPECT().SignAndSendExtrinsic(ctx, call, wallet, opts).Return(chain.Failed("SettingWeightsTooFast"))

	rec := journal.NewRecorder(client, j)
	result := rec.SignAndSendExtrinsic(ctx, call, wallet, opts)
	require.Equal(t, "SettingWeightsTooFast", result.Error)

	records, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, wallet.HotkeyID().String(), records[0].Signer)
	require.Equal(t, "set_weights", records[0].Function)
	require.Equal(t, "SettingWeightsTooFast", records[0].Error)
	require.False(t, records[0].Success())
}
