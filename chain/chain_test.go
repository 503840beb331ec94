package chain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/signing"
)

func TestHashFromHex(t *testing.T) {
	s := "0x" + strings.Repeat("ab", 32)
	h, err := chain.HashFromHex(s)
	require.NoError(t, err)
	require.Equal(t, s, h.String())
	require.False(t, h.IsZero())

	var parsed chain.Hash
	require.NoError(t, parsed.UnmarshalText([]byte(strings.Repeat("ab", 32))))
	require.Equal(t, h, parsed)

	_, err = chain.HashFromHex("0x1234")
	require.ErrorIs(t, err, chain.ErrInvalidHash)
	_, err = chain.HashFromHex("0xzz")
	require.ErrorIs(t, err, chain.ErrInvalidHash)
}

func TestStatus(t *testing.T) {
	for _, s := range []chain.Status{chain.StatusDropped, chain.StatusInvalid, chain.StatusUsurped, chain.StatusFinalityTimeout} {
		require.True(t, s.Terminal(), s)
		require.True(t, s.Rejected(), s)
	}
	require.True(t, chain.StatusFinalized.Terminal())
	require.False(t, chain.StatusFinalized.Rejected())
	require.False(t, chain.StatusInBlock.Terminal())
	require.False(t, chain.StatusReady.Rejected())
}

func TestSubmissionResult(t *testing.T) {
	require.True(t, chain.SubmissionResult{Accepted: true}.Success())
	require.False(t, chain.SubmissionResult{Accepted: true, Error: "boom"}.Success())

	failed := chain.Failed("submitting: %s", "timeout")
	require.False(t, failed.Success())
	require.Equal(t, "submitting: timeout", failed.Error)
}

func TestParamsGet(t *testing.T) {
	params := chain.Params{{Name: "netuid", Value: uint16(3)}, {Name: "nonce", Value: uint64(9)}}
	v, ok := params.Get("nonce")
	require.True(t, ok)
	require.Equal(t, uint64(9), v)
	_, ok = params.Get("missing")
	require.False(t, ok)
}

func TestNeuronNull(t *testing.T) {
	require.True(t, chain.Neuron{}.IsNull())
	n := chain.NewNeuron(0, 1, [32]byte{1}, [32]byte{2})
	require.False(t, n.IsNull())
}

func TestDefaultSendOptions(t *testing.T) {
	opts := chain.DefaultSendOptions()
	require.Equal(t, signing.Coldkey, opts.SignWith)
	require.True(t, opts.Waits())
	require.False(t, chain.SendOptions{}.Waits())
}
