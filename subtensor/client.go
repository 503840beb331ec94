// Package subtensor implements the chain interfaces against a subtensor node.
package subtensor

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/spacemeshos/go-scale"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/extrinsic"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/rpc"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
)

var (
	ErrUnexpectedValue = errors.New("unexpected storage value")

	submissionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "subreg",
		Subsystem: "extrinsic",
		Name:      "submission_latency_seconds",
		Help:      "Time from submission to the final observed status of an extrinsic",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"call", "status"})
)

// unwatchTimeout bounds the cleanup of a watch subscription after the caller is done.
const unwatchTimeout = 5 * time.Second

// Caller is the subset of rpc.Client used by Client.
type Caller interface {
	Call(ctx context.Context, method string, result any, params ...any) error
	Subscribe(ctx context.Context, method, unsubscribe string, params ...any) (*rpc.Subscription, error)
}

// Client talks to a subtensor node.
// It implements chain.Client, chain.Querier and the solver's chain view.
type Client struct {
	rpc    Caller
	cfg    Config
	logger *zap.Logger

	// storage entries read at a pinned block never change
	cache *lru.Cache[string, storageValue]

	genesisMu sync.Mutex
	genesis   chain.Hash

	// runtime metadata by spec version
	metadataMu sync.Mutex
	metadata   map[uint32]*Metadata
}

type storageValue struct {
	data  []byte
	found bool
}

type newClientOptionFunc func(*newClientOptions)

type newClientOptions struct {
	cfg Config
}

func WithConfig(cfg Config) newClientOptionFunc {
	return func(opts *newClientOptions) {
		opts.cfg = cfg
	}
}

func New(ctx context.Context, caller Caller, opts ...newClientOptionFunc) (*Client, error) {
	options := newClientOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&options)
	}
	size := options.cfg.CacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New[string, storageValue](size)
	if err != nil {
		return nil, fmt.Errorf("creating storage cache: %w", err)
	}
	logger := logging.FromContext(ctx).Named("subtensor")
	logger.Debug("created client", zap.Inline(options.cfg))
	return &Client{
		rpc:    caller,
		cfg:    options.cfg,
		logger:   logger,
		cache:    cache,
		metadata: make(map[uint32]*Metadata),
	}, nil
}

func (c *Client) ComposeCall(ctx context.Context, module, function string, params chain.Params) (*chain.Call, error) {
	name := module + "." + function
	index, ok := c.cfg.CallIndices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownCall, name)
	}
	data, err := extrinsic.EncodeCall(index, params)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}
	return &chain.Call{
		Module:   module,
		Function: function,
		Params:   params,
		Index:    index,
		Data:     data,
	}, nil
}

func (c *Client) GetChainHead(ctx context.Context) (chain.Hash, error) {
	var head string
	if err := c.rpc.Call(ctx, "chain_getHead", &head); err != nil {
		return chain.Hash{}, err
	}
	return chain.HashFromHex(head)
}

func (c *Client) GetCurrentBlock(ctx context.Context) (uint64, error) {
	var header json.RawMessage
	if err := c.rpc.Call(ctx, "chain_getHeader", &header); err != nil {
		return 0, err
	}
	return parseHexNumber(gjson.GetBytes(header, "number").String())
}

func (c *Client) GetBlockHash(ctx context.Context, number uint64) (chain.Hash, error) {
	var hash *string
	if err := c.rpc.Call(ctx, "chain_getBlockHash", &hash, number); err != nil {
		return chain.Hash{}, err
	}
	if hash == nil {
		return chain.Hash{}, fmt.Errorf("block %d is unknown", number)
	}
	return chain.HashFromHex(*hash)
}

func (c *Client) genesisHash(ctx context.Context) (chain.Hash, error) {
	c.genesisMu.Lock()
	defer c.genesisMu.Unlock()
	if !c.genesis.IsZero() {
		return c.genesis, nil
	}
	hash, err := c.GetBlockHash(ctx, 0)
	if err != nil {
		return chain.Hash{}, fmt.Errorf("fetching genesis hash: %w", err)
	}
	c.genesis = hash
	return hash, nil
}

func (c *Client) SubnetExists(ctx context.Context, netuid uint16, at chain.Hash) (bool, error) {
	v, err := c.readStorage(ctx, networksAddedKey(netuid), at)
	if err != nil || !v.found {
		return false, err
	}
	exists, _, err := scale.DecodeBool(scale.NewDecoder(bytes.NewReader(v.data)))
	if err != nil {
		return false, fmt.Errorf("%w: NetworksAdded: %v", ErrUnexpectedValue, err)
	}
	return exists, nil
}

func (c *Client) GetNeuronForPubkeyAndSubnet(
	ctx context.Context,
	hotkey ss58.AccountID,
	netuid uint16,
	at chain.Hash,
) (chain.Neuron, error) {
	uid, found, err := c.uid(ctx, netuid, hotkey, at)
	if err != nil || !found {
		return chain.Neuron{}, err
	}
	v, err := c.readStorage(ctx, ownerKey(hotkey), at)
	if err != nil {
		return chain.Neuron{}, err
	}
	var coldkey ss58.AccountID
	if v.found {
		if len(v.data) != len(coldkey) {
			return chain.Neuron{}, fmt.Errorf("%w: Owner has %d bytes", ErrUnexpectedValue, len(v.data))
		}
		copy(coldkey[:], v.data)
	}
	return chain.NewNeuron(uid, netuid, hotkey, coldkey), nil
}

func (c *Client) IsHotkeyRegistered(ctx context.Context, netuid uint16, hotkey ss58.AccountID) (bool, error) {
	_, found, err := c.uid(ctx, netuid, hotkey, chain.Hash{})
	return found, err
}

func (c *Client) uid(ctx context.Context, netuid uint16, hotkey ss58.AccountID, at chain.Hash) (uint16, bool, error) {
	v, err := c.readStorage(ctx, uidsKey(netuid, hotkey), at)
	if err != nil || !v.found {
		return 0, false, err
	}
	if len(v.data) != 2 {
		return 0, false, fmt.Errorf("%w: Uids has %d bytes", ErrUnexpectedValue, len(v.data))
	}
	return binary.LittleEndian.Uint16(v.data), true, nil
}

// Difficulty is the current PoW registration difficulty of the subnet.
func (c *Client) Difficulty(ctx context.Context, netuid uint16) (uint64, error) {
	v, err := c.readStorage(ctx, difficultyKey(netuid), chain.Hash{})
	if err != nil {
		return 0, err
	}
	if !v.found {
		return DefaultDifficulty, nil
	}
	if len(v.data) != 8 {
		return 0, fmt.Errorf("%w: Difficulty has %d bytes", ErrUnexpectedValue, len(v.data))
	}
	return binary.LittleEndian.Uint64(v.data), nil
}

func (c *Client) readStorage(ctx context.Context, key []byte, at chain.Hash) (storageValue, error) {
	hexKey := "0x" + hex.EncodeToString(key)
	params := []any{hexKey}
	cacheKey := ""
	if !at.IsZero() {
		params = append(params, at.String())
		cacheKey = at.String() + hexKey
		if v, ok := c.cache.Get(cacheKey); ok {
			return v, nil
		}
	}

	var result *string
	if err := c.rpc.Call(ctx, "state_getStorage", &result, params...); err != nil {
		return storageValue{}, fmt.Errorf("reading storage %s: %w", hexKey, err)
	}
	var v storageValue
	if result != nil {
		data, err := hex.DecodeString(strings.TrimPrefix(*result, "0x"))
		if err != nil {
			return storageValue{}, fmt.Errorf("%w: %v", ErrUnexpectedValue, err)
		}
		v = storageValue{data: data, found: true}
	}
	if cacheKey != "" {
		c.cache.Add(cacheKey, v)
	}
	return v, nil
}

type runtimeVersion struct {
	spec, tx uint32
}

// runtimeVersion reads the runtime version at the best block, or at the given block.
func (c *Client) runtimeVersion(ctx context.Context, at ...any) (runtimeVersion, error) {
	var raw json.RawMessage
	if err := c.rpc.Call(ctx, "state_getRuntimeVersion", &raw, at...); err != nil {
		return runtimeVersion{}, err
	}
	parsed := gjson.ParseBytes(raw)
	return runtimeVersion{
		spec: uint32(parsed.Get("specVersion").Uint()),
		tx:   uint32(parsed.Get("transactionVersion").Uint()),
	}, nil
}

func (c *Client) accountNonce(ctx context.Context, account ss58.AccountID) (uint64, error) {
	var nonce uint64
	if err := c.rpc.Call(ctx, "system_accountNextIndex", &nonce, ss58.Encode(account[:], c.cfg.SS58Prefix)); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SignAndSendExtrinsic signs call with the wallet key selected by opts and submits it.
func (c *Client) SignAndSendExtrinsic(
	ctx context.Context,
	call *chain.Call,
	wallet *signing.Wallet,
	opts chain.SendOptions,
) chain.SubmissionResult {
	logger := c.logger.With(zap.Stringer("call", call), zap.Stringer("sign_with", opts.SignWith))
	kp, err := wallet.Signer(opts.SignWith)
	if err != nil {
		return chain.Failed("%v", err)
	}
	encoded, err := c.buildExtrinsic(ctx, call, kp, opts.Period)
	if err != nil {
		logger.Warn("failed to build extrinsic", zap.Error(err))
		return chain.Failed("building extrinsic: %v", err)
	}
	hexExtrinsic := "0x" + hex.EncodeToString(encoded)
	result := chain.SubmissionResult{ExtrinsicHash: extrinsic.Hash(encoded)}
	start := time.Now()
	defer func() {
		submissionLatency.WithLabelValues(call.String(), string(result.Status)).Observe(time.Since(start).Seconds())
		logger.Debug("submission finished", zap.Object("result", result))
	}()

	if !opts.Waits() {
		var hash string
		if err := c.rpc.Call(ctx, "author_submitExtrinsic", &hash, hexExtrinsic); err != nil {
			result.Error = err.Error()
			return result
		}
		logger.Info(chain.NotWaitingMessage, zap.String("extrinsic", hash))
		result.Accepted = true
		result.Status = chain.StatusSubmitted
		return result
	}

	sub, err := c.rpc.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", hexExtrinsic)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), unwatchTimeout)
		defer cancel()
		if err := sub.Unsubscribe(ctx); err != nil {
			logger.Debug("failed to unwatch extrinsic", zap.Error(err))
		}
	}()

	result.Status = chain.StatusSubmitted
	for {
		select {
		case msg := <-sub.Notifications():
			status, block := parseStatus(msg)
			result.Status = status
			logger.Debug("extrinsic status", zap.String("status", string(status)), zap.Stringer("block", block))
			switch {
			case status == chain.StatusInBlock:
				result.BlockHash = block
				if !opts.WaitForFinalization {
					c.settle(ctx, logger, &result)
					return result
				}
			case status == chain.StatusFinalized:
				result.BlockHash = block
				c.settle(ctx, logger, &result)
				return result
			case status.Rejected():
				result.Error = fmt.Sprintf("extrinsic %s", status)
				return result
			}
		case <-sub.Done():
			result.Error = fmt.Sprintf("watch ended before confirmation: %v", sub.Err())
			return result
		case <-ctx.Done():
			result.Error = ctx.Err().Error()
			return result
		}
	}
}

// settle accepts an included extrinsic only when its block recorded a successful dispatch.
func (c *Client) settle(ctx context.Context, logger *zap.Logger, result *chain.SubmissionResult) {
	dispatchErr, err := c.dispatchError(ctx, result.BlockHash, result.ExtrinsicHash)
	switch {
	case err != nil:
		logger.Warn("failed to read dispatch outcome", zap.Error(err))
		result.Error = fmt.Sprintf("reading dispatch outcome: %v", err)
	case dispatchErr != "":
		logger.Info("extrinsic failed", zap.String("error", dispatchErr))
		result.Error = dispatchErr
	default:
		result.Accepted = true
	}
}

// dispatchError returns the dispatch error of the extrinsic in block, or an empty string if it succeeded.
func (c *Client) dispatchError(ctx context.Context, block, xtHash chain.Hash) (string, error) {
	index, err := c.extrinsicIndex(ctx, block, xtHash)
	if err != nil {
		return "", err
	}
	md, err := c.metadataAt(ctx, block)
	if err != nil {
		return "", err
	}
	v, err := c.readStorage(ctx, StorageKey("System", "Events"), block)
	if err != nil {
		return "", err
	}
	if !v.found {
		return "", fmt.Errorf("%w: no events in block %s", ErrNoDispatchOutcome, block)
	}
	return md.DispatchOutcome(v.data, index)
}

func (c *Client) extrinsicIndex(ctx context.Context, block, xtHash chain.Hash) (uint32, error) {
	var raw json.RawMessage
	if err := c.rpc.Call(ctx, "chain_getBlock", &raw, block.String()); err != nil {
		return 0, fmt.Errorf("fetching block %s: %w", block, err)
	}
	for i, xt := range gjson.GetBytes(raw, "block.extrinsics").Array() {
		data, err := hex.DecodeString(strings.TrimPrefix(xt.String(), "0x"))
		if err != nil {
			return 0, fmt.Errorf("%w: extrinsic %d of block %s: %v", ErrUnexpectedValue, i, block, err)
		}
		if extrinsic.Hash(data) == xtHash {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("%w: extrinsic %s is not in block %s", ErrNoDispatchOutcome, xtHash, block)
}

// metadataAt returns the runtime metadata in effect at block.
func (c *Client) metadataAt(ctx context.Context, block chain.Hash) (*Metadata, error) {
	version, err := c.runtimeVersion(ctx, block.String())
	if err != nil {
		return nil, fmt.Errorf("fetching runtime version: %w", err)
	}
	c.metadataMu.Lock()
	defer c.metadataMu.Unlock()
	if md, ok := c.metadata[version.spec]; ok {
		return md, nil
	}

	var encoded string
	if err := c.rpc.Call(ctx, "state_getMetadata", &encoded, block.String()); err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	data, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrUnexpectedValue, err)
	}
	md, err := ParseMetadata(data)
	if err != nil {
		return nil, err
	}
	c.metadata[version.spec] = md
	c.logger.Debug("loaded runtime metadata", zap.Uint32("spec_version", version.spec))
	return md, nil
}

func (c *Client) buildExtrinsic(ctx context.Context, call *chain.Call, kp signing.Keypair, period uint64) ([]byte, error) {
	genesis, err := c.genesisHash(ctx)
	if err != nil {
		return nil, err
	}
	version, err := c.runtimeVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching runtime version: %w", err)
	}
	nonce, err := c.accountNonce(ctx, kp.AccountID())
	if err != nil {
		return nil, fmt.Errorf("fetching account nonce: %w", err)
	}

	era, checkpoint := extrinsic.Immortal(), genesis
	if period > 0 {
		current, err := c.GetCurrentBlock(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching current block: %w", err)
		}
		era = extrinsic.Mortal(period, current)
		checkpoint, err = c.GetBlockHash(ctx, era.Birth(current))
		if err != nil {
			return nil, fmt.Errorf("fetching era checkpoint: %w", err)
		}
	}

	xt, err := extrinsic.Sign(extrinsic.Payload{
		Call:         call.Data,
		Era:          era,
		Nonce:        nonce,
		Tip:          c.cfg.Tip,
		SpecVersion:  version.spec,
		TxVersion:    version.tx,
		Genesis:      genesis,
		Checkpoint:   checkpoint,
		MetadataHash: c.cfg.MetadataHash,
	}, kp)
	if err != nil {
		return nil, err
	}
	return xt.Encode()
}

// parseStatus reads a TransactionStatus notification such as "ready" or {"inBlock": "0x.."}.
func parseStatus(msg json.RawMessage) (chain.Status, chain.Hash) {
	parsed := gjson.ParseBytes(msg)
	if parsed.Type == gjson.String {
		return chain.Status(parsed.String()), chain.Hash{}
	}
	var (
		status chain.Status
		block  chain.Hash
	)
	parsed.ForEach(func(key, value gjson.Result) bool {
		status = chain.Status(key.String())
		if value.Type == gjson.String {
			block, _ = chain.HashFromHex(value.String())
		}
		return false
	})
	return status, block
}

func parseHexNumber(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: block number %q", ErrUnexpectedValue, s)
	}
	return n, nil
}
