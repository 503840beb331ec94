package subtensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"golang.org/x/exp/slices"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/ss58"
)

var ErrInvalidCallIndex = errors.New("invalid call index")

// CallIndices maps "Module.function" to its pallet and call index.
type CallIndices map[string][2]byte

// DefaultCallIndices are the indices of the subtensor runtime.
func DefaultCallIndices() CallIndices {
	const pallet = 7
	return CallIndices{
		chain.Module + "." + chain.FuncSetWeights:        {pallet, 0},
		chain.Module + "." + chain.FuncRegister:          {pallet, 6},
		chain.Module + "." + chain.FuncBurnedRegister:    {pallet, 7},
		chain.Module + "." + chain.FuncRegisterNetwork:   {pallet, 59},
		chain.Module + "." + chain.FuncSetSubnetIdentity: {pallet, 78},
	}
}

// Set parses an override in the form Module.function=pallet:call.
func (c CallIndices) Set(value string) error {
	name, index, ok := strings.Cut(value, "=")
	if !ok || !strings.Contains(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidCallIndex, value)
	}
	p, f, ok := strings.Cut(index, ":")
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCallIndex, value)
	}
	pallet, err := strconv.ParseUint(p, 10, 8)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCallIndex, value, err)
	}
	call, err := strconv.ParseUint(f, 10, 8)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCallIndex, value, err)
	}
	c[name] = [2]byte{byte(pallet), byte(call)}
	return nil
}

func DefaultConfig() Config {
	return Config{
		SS58Prefix:  ss58.DefaultPrefix,
		CacheSize:   1024,
		CallIndices: DefaultCallIndices(),
	}
}

// Config of the node-backed chain client.
type Config struct {
	SS58Prefix uint16
	// MetadataHash enables the CheckMetadataHash signed extension.
	MetadataHash bool
	// Tip is added to every extrinsic.
	Tip uint64
	// CacheSize is the number of storage entries cached per client.
	CacheSize   int
	CallIndices CallIndices
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint16("ss58_prefix", c.SS58Prefix)
	enc.AddBool("metadata_hash", c.MetadataHash)
	enc.AddUint64("tip", c.Tip)
	enc.AddInt("cache_size", c.CacheSize)
	names := make([]string, 0, len(c.CallIndices))
	for name := range c.CallIndices {
		names = append(names, name)
	}
	slices.Sort(names)
	return enc.AddArray("calls", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		for _, name := range names {
			idx := c.CallIndices[name]
			arr.AppendString(fmt.Sprintf("%s=%d:%d", name, idx[0], idx[1]))
		}
		return nil
	}))
}
