package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/extrinsic"
	"github.com/subtensor-tools/subreg/logging"
	"github.com/subtensor-tools/subreg/shared"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
	"github.com/subtensor-tools/subreg/subtensor"
)

const (
	specVersion = 1
	txVersion   = 1
)

var (
	ErrUnknownBlock = errors.New("unknown block")
	ErrCallMismatch = errors.New("signed call does not match the composed call")
)

// Module errors raised by the in-memory runtime.
const (
	errSubnetMissing      = "SubNetworkDoesNotExist"
	errInvalidWorkBlock   = "InvalidWorkBlock"
	errInvalidDifficulty  = "InvalidDifficulty"
	errInvalidSeal        = "InvalidSeal"
	errHotkeyNotInSubnet  = "HotKeyNotRegisteredInSubNet"
	errNotSubnetOwner     = "NotSubnetOwner"
	errWeightsSizeInvalid = "WeightVecNotEqualSize"
	errBadArguments       = "InvalidArguments"
)

func DefaultConfig() Config {
	return Config{
		Difficulty:     1_000,
		StaleTolerance: shared.DefaultStaleTolerance,
		BlockTime:      12 * time.Second,
		CallIndices:    subtensor.DefaultCallIndices(),
	}
}

// Config of the in-memory chain.
type Config struct {
	// Difficulty of subnets created without an explicit one.
	Difficulty     uint64
	StaleTolerance uint64
	// BlockTime is the interval at which Run produces empty blocks.
	BlockTime   time.Duration
	CallIndices subtensor.CallIndices
}

type subnet struct {
	owner      ss58.AccountID
	difficulty uint64
	neurons    []chain.Neuron
	identity   chain.Params
	weights    map[uint16][]Weight
}

// Weight is one entry of a validator's weight vector.
type Weight struct {
	UID   uint16
	Value uint16
}

// InMemory is a single node chain kept in memory.
// Every accepted extrinsic is sealed into its own block and finalized at once.
// It is safe for concurrent use.
type InMemory struct {
	cfg Config

	mu      sync.Mutex
	blocks  []chain.Hash
	subnets map[uint16]*subnet
	nonces  map[ss58.AccountID]uint64
	calls   map[[2]byte]string
	blocksC chan uint64
}

type newInMemoryOptionFunc func(*newInMemoryOptions)

type newInMemoryOptions struct {
	cfg Config
}

func WithConfig(cfg Config) newInMemoryOptionFunc {
	return func(opts *newInMemoryOptions) {
		opts.cfg = cfg
	}
}

func NewInMemory(opts ...newInMemoryOptionFunc) *InMemory {
	options := newInMemoryOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&options)
	}
	m := &InMemory{
		cfg:     options.cfg,
		blocks:  []chain.Hash{blake2b.Sum256([]byte("subreg in-memory genesis"))},
		subnets: make(map[uint16]*subnet),
		nonces:  make(map[ss58.AccountID]uint64),
		calls:   make(map[[2]byte]string, len(options.cfg.CallIndices)),
		blocksC: make(chan uint64, 1),
	}
	for name, index := range options.cfg.CallIndices {
		m.calls[index] = name
	}
	return m
}

// AddSubnet creates subnet netuid owned by owner. A zero difficulty uses the configured default.
func (m *InMemory) AddSubnet(netuid uint16, owner ss58.AccountID, difficulty uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if difficulty == 0 {
		difficulty = m.cfg.Difficulty
	}
	m.subnets[netuid] = &subnet{owner: owner, difficulty: difficulty, weights: make(map[uint16][]Weight)}
}

// Neurons returns the registered neurons of netuid in uid order.
func (m *InMemory) Neurons(netuid uint16) []chain.Neuron {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subnets[netuid]
	if !ok {
		return nil
	}
	return append([]chain.Neuron(nil), s.neurons...)
}

// Identity returns the identity parameters last set for netuid.
func (m *InMemory) Identity(netuid uint16) (chain.Params, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subnets[netuid]
	if !ok || s.identity == nil {
		return nil, false
	}
	return s.identity, true
}

// Weights returns the weights set by uid on netuid.
func (m *InMemory) Weights(netuid, uid uint16) []Weight {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subnets[netuid]; ok {
		return append([]Weight(nil), s.weights[uid]...)
	}
	return nil
}

// AdvanceBlocks produces n empty blocks.
func (m *InMemory) AdvanceBlocks(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.sealBlock(nil)
	}
}

// RegisterForBlocks returns a channel receiving the number of every new block.
// Blocks are dropped when nobody reads the channel.
func (m *InMemory) RegisterForBlocks(ctx context.Context) <-chan uint64 {
	return m.blocksC
}

// Run produces an empty block every BlockTime until ctx is done.
func (m *InMemory) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.BlockTime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.AdvanceBlocks(1)
		}
	}
}

// sealBlock appends a block; callers hold mu.
func (m *InMemory) sealBlock(body []byte) uint64 {
	parent := m.blocks[len(m.blocks)-1]
	h, _ := blake2b.New256(nil)
	h.Write(parent[:])
	var number [8]byte
	binary.LittleEndian.PutUint64(number[:], uint64(len(m.blocks)))
	h.Write(number[:])
	h.Write(body)
	var hash chain.Hash
	copy(hash[:], h.Sum(nil))
	m.blocks = append(m.blocks, hash)

	current := uint64(len(m.blocks) - 1)
	select {
	case m.blocksC <- current:
	default:
	}
	return current
}

// Implement chain.Client.
func (m *InMemory) ComposeCall(ctx context.Context, module, function string, params chain.Params) (*chain.Call, error) {
	name := module + "." + function
	index, ok := m.cfg.CallIndices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownCall, name)
	}
	data, err := extrinsic.EncodeCall(index, params)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}
	return &chain.Call{Module: module, Function: function, Params: params, Index: index, Data: data}, nil
}

func (m *InMemory) SignAndSendExtrinsic(
	ctx context.Context,
	call *chain.Call,
	wallet *signing.Wallet,
	opts chain.SendOptions,
) chain.SubmissionResult {
	logger := logging.FromContext(ctx).Named("in-memory").With(zap.Stringer("call", call))
	kp, err := wallet.Signer(opts.SignWith)
	if err != nil {
		return chain.Failed("%v", err)
	}
	if err := ctx.Err(); err != nil {
		return chain.Failed("%v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	encoded, err := m.build(call, kp, opts.Period)
	if err != nil {
		return chain.Failed("building extrinsic: %v", err)
	}
	result := chain.SubmissionResult{ExtrinsicHash: extrinsic.Hash(encoded)}
	xt, err := m.validate(encoded)
	if err != nil {
		result.Status = chain.StatusInvalid
		result.Error = err.Error()
		return result
	}
	if err := checkCall(xt.Call, call); err != nil {
		result.Status = chain.StatusInvalid
		result.Error = err.Error()
		return result
	}
	m.nonces[xt.Signer]++
	dispatchErr := m.dispatch(xt.Signer, call)
	number := m.sealBlock(encoded)
	result.BlockHash = m.blocks[number]
	logger.Debug("extrinsic included", zap.Uint64("block", number), zap.String("dispatch_error", dispatchErr))

	switch {
	case !opts.Waits():
		logger.Info(chain.NotWaitingMessage)
		result.Status = chain.StatusSubmitted
		result.Accepted = true
		return result
	case opts.WaitForFinalization:
		result.Status = chain.StatusFinalized
	default:
		result.Status = chain.StatusInBlock
	}
	if dispatchErr != "" {
		result.Error = chain.Module + "." + dispatchErr
		return result
	}
	result.Accepted = true
	return result
}

func (m *InMemory) GetChainHead(ctx context.Context) (chain.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocks[len(m.blocks)-1], nil
}

// Implement chain.Querier. Only the latest state is kept, so at is ignored.
func (m *InMemory) SubnetExists(ctx context.Context, netuid uint16, at chain.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subnets[netuid]
	return ok, nil
}

func (m *InMemory) GetNeuronForPubkeyAndSubnet(
	ctx context.Context,
	hotkey ss58.AccountID,
	netuid uint16,
	at chain.Hash,
) (chain.Neuron, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.neuron(netuid, hotkey); ok {
		return n, nil
	}
	return chain.Neuron{}, nil
}

func (m *InMemory) IsHotkeyRegistered(ctx context.Context, netuid uint16, hotkey ss58.AccountID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.neuron(netuid, hotkey)
	return ok, nil
}

// Implement pow.Chain.
func (m *InMemory) GetCurrentBlock(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.blocks) - 1), nil
}

func (m *InMemory) GetBlockHash(ctx context.Context, number uint64) (chain.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if number >= uint64(len(m.blocks)) {
		return chain.Hash{}, fmt.Errorf("%w: %d", ErrUnknownBlock, number)
	}
	return m.blocks[number], nil
}

func (m *InMemory) Difficulty(ctx context.Context, netuid uint16) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subnets[netuid]; ok {
		return s.difficulty, nil
	}
	return m.cfg.Difficulty, nil
}

func (m *InMemory) neuron(netuid uint16, hotkey ss58.AccountID) (chain.Neuron, bool) {
	s, ok := m.subnets[netuid]
	if !ok {
		return chain.Neuron{}, false
	}
	for _, n := range s.neurons {
		if n.Hotkey == hotkey {
			return n, true
		}
	}
	return chain.Neuron{}, false
}

func (m *InMemory) build(call *chain.Call, kp signing.Keypair, period uint64) ([]byte, error) {
	current := uint64(len(m.blocks) - 1)
	era, checkpoint := extrinsic.Immortal(), m.blocks[0]
	if period > 0 {
		era = extrinsic.Mortal(period, current)
		checkpoint = m.blocks[era.Birth(current)]
	}
	xt, err := extrinsic.Sign(m.payload(call.Data, era, m.nonces[kp.AccountID()], 0, checkpoint), kp)
	if err != nil {
		return nil, err
	}
	return xt.Encode()
}

func (m *InMemory) payload(call []byte, era extrinsic.Era, nonce, tip uint64, checkpoint chain.Hash) extrinsic.Payload {
	return extrinsic.Payload{
		Call:        call,
		Era:         era,
		Nonce:       nonce,
		Tip:         tip,
		SpecVersion: specVersion,
		TxVersion:   txVersion,
		Genesis:     m.blocks[0],
		Checkpoint:  checkpoint,
	}
}

// validate decodes an extrinsic the way a node does before it enters the pool.
func (m *InMemory) validate(encoded []byte) (*extrinsic.Extrinsic, error) {
	xt, err := extrinsic.Decode(encoded, false)
	if err != nil {
		return nil, err
	}
	current := uint64(len(m.blocks) - 1)
	checkpoint := m.blocks[0]
	if !xt.Era.IsImmortal() {
		birth := xt.Era.Birth(current)
		if birth > current {
			return nil, fmt.Errorf("%w: born after block %d", extrinsic.ErrInvalidEra, current)
		}
		checkpoint = m.blocks[birth]
	}
	if expected := m.nonces[xt.Signer]; xt.Nonce != expected {
		return nil, fmt.Errorf("invalid nonce %d, expected %d", xt.Nonce, expected)
	}

	p := m.payload(xt.Call, xt.Era, xt.Nonce, xt.Tip, checkpoint)
	var buf bytes.Buffer
	if _, err := p.EncodeScale(scale.NewEncoder(&buf)); err != nil {
		return nil, err
	}
	ok, err := signing.Verify(xt.Scheme, xt.Signer, buf.Bytes(), xt.Signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("bad signature")
	}
	return xt, nil
}

// checkCall requires the parameters dispatched from call to be exactly the signed call bytes.
func checkCall(signed []byte, call *chain.Call) error {
	index, err := extrinsic.CallIndex(signed)
	if err != nil {
		return err
	}
	if index != call.Index {
		return fmt.Errorf("%w: signed call index %v, composed %v", ErrCallMismatch, index, call.Index)
	}
	data, err := extrinsic.EncodeCall(index, call.Params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCallMismatch, err)
	}
	if !bytes.Equal(data, signed) {
		return fmt.Errorf("%w: parameters of %s differ from the signed bytes", ErrCallMismatch, call)
	}
	return nil
}

// dispatch applies call and returns the module error name, if any.
func (m *InMemory) dispatch(signer ss58.AccountID, call *chain.Call) string {
	if name, ok := m.calls[call.Index]; !ok || name != call.Module+"."+call.Function {
		return errBadArguments
	}
	switch call.Function {
	case chain.FuncRegister:
		return m.register(call.Params)
	case chain.FuncBurnedRegister:
		return m.burnedRegister(signer, call.Params)
	case chain.FuncRegisterNetwork:
		return m.registerNetwork(signer, call.Params)
	case chain.FuncSetSubnetIdentity:
		return m.setSubnetIdentity(signer, call.Params)
	case chain.FuncSetWeights:
		return m.setWeights(signer, call.Params)
	}
	return errBadArguments
}

func param[T any](params chain.Params, name string) (T, bool) {
	v, ok := params.Get(name)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func (m *InMemory) register(params chain.Params) string {
	netuid, ok1 := param[uint16](params, "netuid")
	block, ok2 := param[uint64](params, "block_number")
	nonce, ok3 := param[uint64](params, "nonce")
	work, ok4 := param[[]byte](params, "work")
	hotkey, ok5 := param[ss58.AccountID](params, "hotkey")
	coldkey, ok6 := param[ss58.AccountID](params, "coldkey")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return errBadArguments
	}
	s, ok := m.subnets[netuid]
	if !ok {
		return errSubnetMissing
	}
	current := uint64(len(m.blocks) - 1)
	if block > current || block+m.cfg.StaleTolerance < current {
		return errInvalidWorkBlock
	}
	if !shared.SealMeetsDifficulty(work, s.difficulty) {
		return errInvalidDifficulty
	}
	if !shared.VerifySeal(m.blocks[block][:], hotkey[:], nonce, s.difficulty, work) {
		return errInvalidSeal
	}
	return m.appendNeuron(netuid, s, hotkey, coldkey)
}

func (m *InMemory) burnedRegister(signer ss58.AccountID, params chain.Params) string {
	netuid, ok1 := param[uint16](params, "netuid")
	hotkey, ok2 := param[ss58.AccountID](params, "hotkey")
	if !ok1 || !ok2 {
		return errBadArguments
	}
	s, ok := m.subnets[netuid]
	if !ok {
		return errSubnetMissing
	}
	return m.appendNeuron(netuid, s, hotkey, signer)
}

func (m *InMemory) appendNeuron(netuid uint16, s *subnet, hotkey, coldkey ss58.AccountID) string {
	if _, ok := m.neuron(netuid, hotkey); ok {
		return chain.AlreadyRegisteredError
	}
	s.neurons = append(s.neurons, chain.NewNeuron(uint16(len(s.neurons)), netuid, hotkey, coldkey))
	return ""
}

func (m *InMemory) registerNetwork(signer ss58.AccountID, params chain.Params) string {
	hotkey, ok := param[ss58.AccountID](params, "hotkey")
	if !ok {
		return errBadArguments
	}
	next := uint16(1)
	for netuid := range m.subnets {
		if netuid >= next {
			next = netuid + 1
		}
	}
	s := &subnet{owner: signer, difficulty: m.cfg.Difficulty, weights: make(map[uint16][]Weight)}
	m.subnets[next] = s
	return m.appendNeuron(next, s, hotkey, signer)
}

func (m *InMemory) setSubnetIdentity(signer ss58.AccountID, params chain.Params) string {
	netuid, ok := param[uint16](params, "netuid")
	if !ok {
		return errBadArguments
	}
	s, ok := m.subnets[netuid]
	if !ok {
		return errSubnetMissing
	}
	if s.owner != signer {
		return errNotSubnetOwner
	}
	s.identity = append(chain.Params(nil), params...)
	return ""
}

func (m *InMemory) setWeights(signer ss58.AccountID, params chain.Params) string {
	netuid, ok1 := param[uint16](params, "netuid")
	dests, ok2 := param[[]uint16](params, "dests")
	vals, ok3 := param[[]uint16](params, "weights")
	if !(ok1 && ok2 && ok3) {
		return errBadArguments
	}
	if len(dests) != len(vals) {
		return errWeightsSizeInvalid
	}
	s, ok := m.subnets[netuid]
	if !ok {
		return errSubnetMissing
	}
	n, ok := m.neuron(netuid, signer)
	if !ok {
		return errHotkeyNotInSubnet
	}
	weights := make([]Weight, len(dests))
	for i := range dests {
		weights[i] = Weight{UID: dests[i], Value: vals[i]}
	}
	s.weights[n.UID] = weights
	return ""
}
