package subtensor_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/extrinsic"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/rpc"
	"github.com/subtensor-tools/subreg/rpc/rpctest"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
	"github.com/subtensor-tools/subreg/subtensor"
)

var (
	genesis = "0x" + strings.Repeat("11", 32)
	head    = "0x" + strings.Repeat("22", 32)
	block   = "0x" + strings.Repeat("33", 32)
)

type node struct {
	*rpctest.Server

	mu        sync.Mutex
	storage   map[string]string
	submitted []string
	watch     []any
}

func newNode(t *testing.T) *node {
	n := &node{Server: rpctest.NewServer(t), storage: make(map[string]string)}
	n.Handle("chain_getHead", func(gjson.Result) (any, error) { return head, nil })
	n.Handle("chain_getHeader", func(gjson.Result) (any, error) {
		return map[string]any{"number": "0x64", "parentHash": genesis}, nil
	})
	n.Handle("chain_getBlockHash", func(params gjson.Result) (any, error) {
		if params.Get("0").Uint() == 0 {
			return genesis, nil
		}
		return block, nil
	})
	n.Handle("state_getRuntimeVersion", func(gjson.Result) (any, error) {
		return map[string]any{"specVersion": 201, "transactionVersion": 1}, nil
	})
	n.Handle("system_accountNextIndex", func(gjson.Result) (any, error) { return 4, nil })
	n.Handle("state_getStorage", func(params gjson.Result) (any, error) {
		n.mu.Lock()
		defer n.mu.Unlock()
		v, ok := n.storage[params.Get("0").String()]
		if !ok {
			return nil, nil
		}
		return v, nil
	})
	n.Handle("author_submitExtrinsic", func(params gjson.Result) (any, error) {
		n.record(params)
		return head, nil
	})
	n.HandleSubscription("author_submitAndWatchExtrinsic", func(params gjson.Result) ([]any, error) {
		n.record(params)
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.watch, nil
	})
	n.Handle("author_unwatchExtrinsic", func(gjson.Result) (any, error) { return true, nil })
	n.Handle("chain_getBlock", func(gjson.Result) (any, error) {
		n.mu.Lock()
		defer n.mu.Unlock()
		// the inherent timestamp extrinsic comes first
		extrinsics := append([]string{"0x280402000b50cd0b9b8e01"}, n.submitted...)
		return map[string]any{"block": map[string]any{"extrinsics": extrinsics}}, nil
	})
	n.Handle("state_getMetadata", func(gjson.Result) (any, error) {
		return "0x" + hex.EncodeToString(testMetadata(14)), nil
	})
	n.setEvents(extrinsicSuccess(0), extrinsicSuccess(1), extrinsicSuccess(2))
	return n
}

func (n *node) setEvents(records ...[]byte) {
	n.set(subtensor.StorageKey("System", "Events"), encodeEvents(records...))
}

func (n *node) record(params gjson.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, params.Get("0").String())
}

func (n *node) set(key []byte, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.storage["0x"+hex.EncodeToString(key)] = "0x" + hex.EncodeToString(value)
}

func (n *node) lastSubmitted(t *testing.T) *extrinsic.Extrinsic {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.submitted)
	raw, err := hex.DecodeString(strings.TrimPrefix(n.submitted[len(n.submitted)-1], "0x"))
	require.NoError(t, err)
	xt, err := extrinsic.Decode(raw, false)
	require.NoError(t, err)
	return xt
}

func newClient(t *testing.T, n *node) *subtensor.Client {
	t.Helper()
	ctx := logging.NewContext(context.Background(), zaptest.NewLogger(t))
	caller, err := rpc.Dial(ctx, n.URL(), rpc.WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, caller.Close()) })
	client, err := subtensor.New(ctx, caller)
	require.NoError(t, err)
	return client
}

func testWallet(t *testing.T) *signing.Wallet {
	t.Helper()
	coldkey, err := signing.FromSeed(signing.Ed25519, bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	hotkey, err := signing.FromSeed(signing.Sr25519, bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	return signing.NewWallet("test", coldkey, hotkey)
}

func TestTwox128(t *testing.T) {
	require.Equal(t, "26aa394eea5630e07c48ae0c9558cef7", hex.EncodeToString(subtensor.Twox128([]byte("System"))))
	require.Equal(t, "b99d880ec681799c0cf30e8886371da9", hex.EncodeToString(subtensor.Twox128([]byte("Account"))))
}

func TestBlake2_128Concat(t *testing.T) {
	key := subtensor.Blake2_128Concat([]byte{1, 2, 3})
	require.Len(t, key, 16+3)
	require.Equal(t, []byte{1, 2, 3}, key[16:])
	require.Equal(t, []byte{1, 2}, subtensor.Twox64Concat([]byte{1, 2})[8:])
}

func TestComposeCall(t *testing.T) {
	client := newClient(t, newNode(t))

	call, err := client.ComposeCall(context.Background(), chain.Module, chain.FuncRegisterNetwork, chain.Params{
		{Name: "hotkey", Value: ss58.AccountID{5}},
	})
	require.NoError(t, err)
	require.Equal(t, [2]byte{7, 59}, call.Index)
	require.Equal(t, append([]byte{7, 59, 5}, make([]byte, 31)...), call.Data)

	_, err = client.ComposeCall(context.Background(), chain.Module, "sudo_everything", nil)
	require.ErrorIs(t, err, chain.ErrUnknownCall)
}

func TestQueries(t *testing.T) {
	n := newNode(t)
	client := newClient(t, n)
	ctx := context.Background()
	hotkey := ss58.AccountID{7}
	coldkey := ss58.AccountID{8}
	at, err := client.GetChainHead(ctx)
	require.NoError(t, err)
	require.Equal(t, head, at.String())

	exists, err := client.SubnetExists(ctx, 1, at)
	require.NoError(t, err)
	require.False(t, exists)

	n.set(subtensor.StorageKey("SubtensorModule", "NetworksAdded", []byte{2, 0}), []byte{1})
	exists, err = client.SubnetExists(ctx, 2, at)
	require.NoError(t, err)
	require.True(t, exists)

	neuron, err := client.GetNeuronForPubkeyAndSubnet(ctx, hotkey, 2, at)
	require.NoError(t, err)
	require.True(t, neuron.IsNull())

	uidsKey := subtensor.StorageKey("SubtensorModule", "Uids", []byte{2, 0}, subtensor.Blake2_128Concat(hotkey[:]))
	n.set(uidsKey, []byte{5, 0})
	n.set(subtensor.StorageKey("SubtensorModule", "Owner", subtensor.Blake2_128Concat(hotkey[:])), coldkey[:])

	// reads at a pinned block are cached, so the neuron is still absent there
	neuron, err = client.GetNeuronForPubkeyAndSubnet(ctx, hotkey, 2, at)
	require.NoError(t, err)
	require.True(t, neuron.IsNull())

	registered, err := client.IsHotkeyRegistered(ctx, 2, hotkey)
	require.NoError(t, err)
	require.True(t, registered)

	other, err := chain.HashFromHex(block)
	require.NoError(t, err)
	neuron, err = client.GetNeuronForPubkeyAndSubnet(ctx, hotkey, 2, other)
	require.NoError(t, err)
	require.False(t, neuron.IsNull())
	require.Equal(t, uint16(5), neuron.UID)
	require.Equal(t, coldkey, neuron.Coldkey)
}

func TestDifficultyAndBlocks(t *testing.T) {
	n := newNode(t)
	client := newClient(t, n)
	ctx := context.Background()

	difficulty, err := client.Difficulty(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(subtensor.DefaultDifficulty), difficulty)

	n.set(subtensor.StorageKey("SubtensorModule", "Difficulty", []byte{3, 0}), []byte{0, 1, 0, 0, 0, 0, 0, 0})
	difficulty, err = client.Difficulty(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(256), difficulty)

	current, err := client.GetCurrentBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(100), current)

	hash, err := client.GetBlockHash(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, block, hash.String())
}

func composeRegisterNetwork(t *testing.T, client *subtensor.Client, w *signing.Wallet) *chain.Call {
	t.Helper()
	call, err := client.ComposeCall(context.Background(), chain.Module, chain.FuncRegisterNetwork, chain.Params{
		{Name: "hotkey", Value: w.HotkeyID()},
	})
	require.NoError(t, err)
	return call
}

func TestSignAndSendWaitForInclusion(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", map[string]any{"broadcast": []string{"peer"}}, map[string]any{"inBlock": block}}
	client := newClient(t, n)
	w := testWallet(t)
	call := composeRegisterNetwork(t, client, w)

	result := client.SignAndSendExtrinsic(context.Background(), call, w, chain.DefaultSendOptions())
	require.True(t, result.Success(), result.Error)
	require.Equal(t, chain.StatusInBlock, result.Status)
	require.Equal(t, block, result.BlockHash.String())

	xt := n.lastSubmitted(t)
	require.Equal(t, w.ColdkeyID(), xt.Signer)
	require.Equal(t, signing.Ed25519, xt.Scheme)
	require.Equal(t, uint64(4), xt.Nonce)
	require.True(t, xt.Era.IsImmortal())
	require.Equal(t, call.Data, xt.Call)
}

func TestSignAndSendWaitForFinalization(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", map[string]any{"inBlock": head}, map[string]any{"finalized": block}}
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.SendOptions{
		WaitForFinalization: true,
		SignWith:            signing.Hotkey,
		Period:              64,
	})
	require.True(t, result.Success(), result.Error)
	require.Equal(t, chain.StatusFinalized, result.Status)
	require.Equal(t, block, result.BlockHash.String())

	xt := n.lastSubmitted(t)
	require.Equal(t, w.HotkeyID(), xt.Signer)
	require.Equal(t, signing.Sr25519, xt.Scheme)
	require.Equal(t, uint64(64), xt.Era.Period())
}

func TestSignAndSendDispatchFailed(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", map[string]any{"inBlock": head}, map[string]any{"finalized": block}}
	n.setEvents(extrinsicSuccess(0), networkAdded(1, 3), moduleFailure(1, subtensorPallet, errNotSubnetOwner))
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.SendOptions{
		WaitForFinalization: true,
	})
	require.False(t, result.Success())
	require.False(t, result.Accepted)
	require.Equal(t, chain.StatusFinalized, result.Status)
	require.Equal(t, block, result.BlockHash.String())
	require.Equal(t, "SubtensorModule.NotSubnetOwner", result.Error)
}

func TestSignAndSendInclusionDispatchFailed(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", map[string]any{"inBlock": block}}
	n.setEvents(extrinsicSuccess(0), moduleFailure(1, subtensorPallet, errHotKeyAlreadyRegistered))
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.DefaultSendOptions())
	require.False(t, result.Accepted)
	require.Equal(t, chain.StatusInBlock, result.Status)
	require.Equal(t, "SubtensorModule.HotKeyAlreadyRegisteredInSubNet", result.Error)
}

func TestSignAndSendExtrinsicMissingFromBlock(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", map[string]any{"inBlock": block}}
	n.Handle("chain_getBlock", func(gjson.Result) (any, error) {
		return map[string]any{"block": map[string]any{"extrinsics": []string{"0x0400"}}}, nil
	})
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.DefaultSendOptions())
	require.False(t, result.Accepted)
	require.Contains(t, result.Error, subtensor.ErrNoDispatchOutcome.Error())
}

func TestSignAndSendReusesMetadata(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", map[string]any{"inBlock": block}}
	client := newClient(t, n)
	w := testWallet(t)

	for i := 0; i < 2; i++ {
		result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.DefaultSendOptions())
		require.True(t, result.Success(), result.Error)
	}
	require.Equal(t, 2, n.Calls("chain_getBlock"))
	require.Equal(t, 1, n.Calls("state_getMetadata"))
}

func TestSignAndSendRejected(t *testing.T) {
	n := newNode(t)
	n.watch = []any{"ready", "invalid"}
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.DefaultSendOptions())
	require.False(t, result.Success())
	require.Equal(t, chain.StatusInvalid, result.Status)
	require.Equal(t, "extrinsic invalid", result.Error)
}

func TestSignAndSendTransportError(t *testing.T) {
	n := newNode(t)
	n.HandleSubscription("author_submitAndWatchExtrinsic", func(gjson.Result) ([]any, error) {
		return nil, &rpctest.Error{Code: 1010, Message: "Invalid Transaction", Data: "Custom error: 6"}
	})
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.DefaultSendOptions())
	require.False(t, result.Accepted)
	require.Contains(t, result.Error, "Invalid Transaction")
}

func TestSignAndSendNoWait(t *testing.T) {
	n := newNode(t)
	client := newClient(t, n)
	w := testWallet(t)

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.SendOptions{})
	require.True(t, result.Success())
	require.Equal(t, chain.StatusSubmitted, result.Status)
	require.Equal(t, 1, n.Calls("author_submitExtrinsic"))
	require.Equal(t, 0, n.Calls("author_submitAndWatchExtrinsic"))
}

func TestSignAndSendWithoutColdkey(t *testing.T) {
	n := newNode(t)
	client := newClient(t, n)
	w := testWallet(t)
	w.Coldkey = nil

	result := client.SignAndSendExtrinsic(context.Background(), composeRegisterNetwork(t, client, w), w, chain.DefaultSendOptions())
	require.False(t, result.Accepted)
	require.Contains(t, result.Error, signing.ErrKeyUnavailable.Error())
	require.Equal(t, 0, n.Calls("author_submitAndWatchExtrinsic"))
}

func TestCallIndicesSet(t *testing.T) {
	indices := subtensor.DefaultCallIndices()
	require.NoError(t, indices.Set("SubtensorModule.register=8:1"))
	require.Equal(t, [2]byte{8, 1}, indices["SubtensorModule.register"])

	require.ErrorIs(t, indices.Set("register=8:1"), subtensor.ErrInvalidCallIndex)
	require.ErrorIs(t, indices.Set("SubtensorModule.register=8"), subtensor.ErrInvalidCallIndex)
	require.ErrorIs(t, indices.Set("SubtensorModule.register=300:1"), subtensor.ErrInvalidCallIndex)
}
