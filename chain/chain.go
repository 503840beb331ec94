// Package chain defines the data model and the boundary between subreg and a subtensor node.
package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
)

var (
	ErrInvalidHash = errors.New("invalid block hash")
	ErrUnknownCall = errors.New("unknown call")
)

// Hash is a 32 byte block or extrinsic hash.
type Hash [32]byte

// HashFromHex parses a 0x-prefixed (or bare) hex string.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("%w: length %d", ErrInvalidHash, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Param is a named call argument.
type Param struct {
	Name  string
	Value any
}

// Params are call arguments in on-chain order.
type Params []Param

// Get returns the value of the named parameter.
func (p Params) Get(name string) (any, bool) {
	for _, param := range p {
		if param.Name == name {
			return param.Value, true
		}
	}
	return nil, false
}

// Call is a composed, not yet signed, runtime call.
// Data holds the scale encoding of the call including its index.
type Call struct {
	Module   string
	Function string
	Params   Params
	Index    [2]byte
	Data     []byte
}

func (c *Call) String() string {
	return c.Module + "." + c.Function
}

// Status is the lifecycle state of a submitted extrinsic.
type Status string

const (
	StatusSubmitted       Status = "submitted"
	StatusFuture          Status = "future"
	StatusReady           Status = "ready"
	StatusBroadcast       Status = "broadcast"
	StatusInBlock         Status = "inBlock"
	StatusRetracted       Status = "retracted"
	StatusFinalized       Status = "finalized"
	StatusFinalityTimeout Status = "finalityTimeout"
	StatusUsurped         Status = "usurped"
	StatusDropped         Status = "dropped"
	StatusInvalid         Status = "invalid"
)

// Terminal reports whether no further status updates follow s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinalized, StatusFinalityTimeout, StatusUsurped, StatusDropped, StatusInvalid:
		return true
	}
	return false
}

// Rejected reports whether s means the extrinsic will never be included.
func (s Status) Rejected() bool {
	switch s {
	case StatusFinalityTimeout, StatusUsurped, StatusDropped, StatusInvalid:
		return true
	}
	return false
}

// SubmissionResult is the outcome of one extrinsic submission.
type SubmissionResult struct {
	Accepted      bool
	Error         string
	Status        Status
	ExtrinsicHash Hash
	BlockHash     Hash
}

// Success reports whether the chain accepted the extrinsic without error.
func (r SubmissionResult) Success() bool {
	return r.Accepted && r.Error == ""
}

// Failed builds a rejected result.
func Failed(format string, args ...any) SubmissionResult {
	return SubmissionResult{Error: fmt.Sprintf(format, args...)}
}

// implement zap.ObjectMarshaler interface.
func (r SubmissionResult) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("accepted", r.Accepted)
	enc.AddString("status", string(r.Status))
	if r.Error != "" {
		enc.AddString("error", r.Error)
	}
	if !r.ExtrinsicHash.IsZero() {
		enc.AddString("extrinsic", r.ExtrinsicHash.String())
	}
	if !r.BlockHash.IsZero() {
		enc.AddString("block", r.BlockHash.String())
	}
	return nil
}

// SendOptions control signing and how long a submission is awaited.
// Period is the mortality of the extrinsic in blocks; 0 makes it immortal.
type SendOptions struct {
	WaitForInclusion    bool
	WaitForFinalization bool
	Period              uint64
	SignWith            signing.KeyRole
}

// DefaultSendOptions signs with the coldkey and waits for inclusion only.
func DefaultSendOptions() SendOptions {
	return SendOptions{
		WaitForInclusion: true,
		SignWith:         signing.Coldkey,
	}
}

// Waits reports whether the submission blocks until the extrinsic is included or finalized.
func (o SendOptions) Waits() bool {
	return o.WaitForInclusion || o.WaitForFinalization
}

// Neuron is the registration of a hotkey on a subnet.
type Neuron struct {
	UID     uint16
	Netuid  uint16
	Hotkey  ss58.AccountID
	Coldkey ss58.AccountID

	exists bool
}

// NewNeuron returns a non-null neuron.
func NewNeuron(uid, netuid uint16, hotkey, coldkey ss58.AccountID) Neuron {
	return Neuron{UID: uid, Netuid: netuid, Hotkey: hotkey, Coldkey: coldkey, exists: true}
}

// IsNull reports whether the hotkey holds no slot on the subnet.
func (n Neuron) IsNull() bool {
	return !n.exists
}

//go:generate mockgen -package mocks -destination mocks/chain.go . Client,Querier

// Client builds and submits extrinsics.
type Client interface {
	ComposeCall(ctx context.Context, module, function string, params Params) (*Call, error)
	// SignAndSendExtrinsic never returns transport faults as errors:
	// they are reported through SubmissionResult.Error.
	SignAndSendExtrinsic(ctx context.Context, call *Call, wallet *signing.Wallet, opts SendOptions) SubmissionResult
	GetChainHead(ctx context.Context) (Hash, error)
}

// Querier reads registration state. A zero block hash queries the best block.
type Querier interface {
	SubnetExists(ctx context.Context, netuid uint16, at Hash) (bool, error)
	GetNeuronForPubkeyAndSubnet(ctx context.Context, hotkey ss58.AccountID, netuid uint16, at Hash) (Neuron, error)
	IsHotkeyRegistered(ctx context.Context, netuid uint16, hotkey ss58.AccountID) (bool, error)
}
