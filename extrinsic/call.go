// Package extrinsic implements the scale encoding of calls and signed extrinsics.
package extrinsic

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/ss58"
)

var ErrUnsupportedValue = errors.New("unsupported call argument type")

// Compact marks an integer argument that is encoded in compact form.
type Compact uint64

// EncodeCall encodes the call index followed by params in order.
func EncodeCall(index [2]byte, params chain.Params) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if _, err := scale.EncodeByteArray(enc, index[:]); err != nil {
		return nil, err
	}
	for _, p := range params {
		if _, err := EncodeValue(enc, p.Value); err != nil {
			return nil, fmt.Errorf("encoding %q: %w", p.Name, err)
		}
	}
	return buf.Bytes(), nil
}

// EncodeValue scale-encodes a single call argument.
func EncodeValue(enc *scale.Encoder, value any) (int, error) {
	switch v := value.(type) {
	case uint8:
		return scale.EncodeByteArray(enc, []byte{v})
	case uint16:
		return scale.EncodeByteArray(enc, binary.LittleEndian.AppendUint16(nil, v))
	case uint32:
		return scale.EncodeByteArray(enc, binary.LittleEndian.AppendUint32(nil, v))
	case uint64:
		return scale.EncodeByteArray(enc, binary.LittleEndian.AppendUint64(nil, v))
	case bool:
		return scale.EncodeBool(enc, v)
	case Compact:
		return scale.EncodeCompact64(enc, uint64(v))
	case []byte:
		return scale.EncodeByteSlice(enc, v)
	case string:
		return scale.EncodeByteSlice(enc, []byte(v))
	case ss58.AccountID:
		return scale.EncodeByteArray(enc, v[:])
	case chain.Hash:
		return scale.EncodeByteArray(enc, v[:])
	case []uint16:
		total, err := scale.EncodeCompact32(enc, uint32(len(v)))
		if err != nil {
			return total, err
		}
		for _, x := range v {
			n, err := EncodeValue(enc, x)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	case scale.Encodable:
		return v.EncodeScale(enc)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
