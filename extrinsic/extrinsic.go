package extrinsic

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"

	"github.com/subtensor-tools/subreg/chain"
	"github.com/subtensor-tools/subreg/signing"
	"github.com/subtensor-tools/subreg/ss58"
)

const (
	// signedV4 is extrinsic format version 4 with the signed bit set.
	signedV4 = 0x84
	// addressID is the MultiAddress::Id variant.
	addressID = 0x00

	signatureLen = 64
)

var ErrMalformed = errors.New("malformed extrinsic")

// Payload is what the signer signs.
// MetadataHash enables the CheckMetadataHash extension in disabled mode.
type Payload struct {
	Call         []byte
	Era          Era
	Nonce        uint64
	Tip          uint64
	SpecVersion  uint32
	TxVersion    uint32
	Genesis      chain.Hash
	Checkpoint   chain.Hash
	MetadataHash bool
}

func (p *Payload) EncodeScale(enc *scale.Encoder) (total int, err error) {
	steps := []func() (int, error){
		func() (int, error) { return scale.EncodeByteArray(enc, p.Call) },
		func() (int, error) { return encodeExtra(enc, p.Era, p.Nonce, p.Tip, p.MetadataHash) },
		func() (int, error) {
			var buf [8]byte
			binary.LittleEndian.PutUint32(buf[:4], p.SpecVersion)
			binary.LittleEndian.PutUint32(buf[4:], p.TxVersion)
			return scale.EncodeByteArray(enc, buf[:])
		},
		func() (int, error) { return scale.EncodeByteArray(enc, p.Genesis[:]) },
		func() (int, error) { return scale.EncodeByteArray(enc, p.Checkpoint[:]) },
		func() (int, error) {
			if !p.MetadataHash {
				return 0, nil
			}
			// Option<Hash>::None
			return scale.EncodeByteArray(enc, []byte{0})
		},
	}
	for _, step := range steps {
		n, err := step()
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func encodeExtra(enc *scale.Encoder, era Era, nonce, tip uint64, metadataHash bool) (int, error) {
	total, err := era.EncodeScale(enc)
	if err != nil {
		return total, err
	}
	n, err := scale.EncodeCompact64(enc, nonce)
	total += n
	if err != nil {
		return total, err
	}
	n, err = scale.EncodeCompact64(enc, tip)
	total += n
	if err != nil || !metadataHash {
		return total, err
	}
	// CheckMetadataHash mode: disabled
	n, err = scale.EncodeByteArray(enc, []byte{0})
	return total + n, err
}

// Extrinsic is a signed extrinsic.
type Extrinsic struct {
	Signer       ss58.AccountID
	Scheme       signing.Scheme
	Signature    []byte
	Era          Era
	Nonce        uint64
	Tip          uint64
	MetadataHash bool
	Call         []byte
}

// Sign signs p with kp and returns the resulting extrinsic.
func Sign(p Payload, kp signing.Keypair) (*Extrinsic, error) {
	signed, err := signing.Sign(p, kp)
	if err != nil {
		return nil, err
	}
	return &Extrinsic{
		Signer:       signed.Signer,
		Scheme:       signed.Scheme,
		Signature:    signed.Signature,
		Era:          p.Era,
		Nonce:        p.Nonce,
		Tip:          p.Tip,
		MetadataHash: p.MetadataHash,
		Call:         p.Call,
	}, nil
}

// Encode returns the length-prefixed wire encoding of x.
func (x *Extrinsic) Encode() ([]byte, error) {
	if len(x.Signature) != signatureLen {
		return nil, fmt.Errorf("%w: signature length %d", ErrMalformed, len(x.Signature))
	}
	var body bytes.Buffer
	enc := scale.NewEncoder(&body)
	header := make([]byte, 0, 2+len(x.Signer)+1+signatureLen)
	header = append(header, signedV4, addressID)
	header = append(header, x.Signer[:]...)
	header = append(header, byte(x.Scheme))
	header = append(header, x.Signature...)
	if _, err := scale.EncodeByteArray(enc, header); err != nil {
		return nil, err
	}
	if _, err := encodeExtra(enc, x.Era, x.Nonce, x.Tip, x.MetadataHash); err != nil {
		return nil, err
	}
	if _, err := scale.EncodeByteArray(enc, x.Call); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if _, err := scale.EncodeByteSlice(scale.NewEncoder(&out), body.Bytes()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode parses a length-prefixed signed extrinsic.
// metadataHash must match the setting used when the extrinsic was built.
func Decode(data []byte, metadataHash bool) (*Extrinsic, error) {
	dec := scale.NewDecoder(bytes.NewReader(data))
	length, prefix, err := scale.DecodeCompact64(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: length: %v", ErrMalformed, err)
	}
	if uint64(len(data)-prefix) != length {
		return nil, fmt.Errorf("%w: length %d, have %d bytes", ErrMalformed, length, len(data)-prefix)
	}

	var header [2 + 32 + 1]byte
	consumed, err := scale.DecodeByteArray(dec, header[:])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}
	if header[0] != signedV4 || header[1] != addressID {
		return nil, fmt.Errorf("%w: unsupported version %#x or address %#x", ErrMalformed, header[0], header[1])
	}
	x := &Extrinsic{
		Scheme:       signing.Scheme(header[34]),
		Signature:    make([]byte, signatureLen),
		MetadataHash: metadataHash,
	}
	copy(x.Signer[:], header[2:34])

	n, err := scale.DecodeByteArray(dec, x.Signature)
	consumed += n
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}
	n, err = x.Era.DecodeScale(dec)
	consumed += n
	if err != nil {
		return nil, fmt.Errorf("%w: era: %v", ErrMalformed, err)
	}
	x.Nonce, n, err = scale.DecodeCompact64(dec)
	consumed += n
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrMalformed, err)
	}
	x.Tip, n, err = scale.DecodeCompact64(dec)
	consumed += n
	if err != nil {
		return nil, fmt.Errorf("%w: tip: %v", ErrMalformed, err)
	}
	if metadataHash {
		var mode [1]byte
		n, err = scale.DecodeByteArray(dec, mode[:])
		consumed += n
		if err != nil {
			return nil, fmt.Errorf("%w: metadata hash mode: %v", ErrMalformed, err)
		}
	}

	if uint64(consumed) >= length {
		return nil, fmt.Errorf("%w: missing call", ErrMalformed)
	}
	x.Call = make([]byte, length-uint64(consumed))
	if _, err := scale.DecodeByteArray(dec, x.Call); err != nil {
		return nil, fmt.Errorf("%w: call: %v", ErrMalformed, err)
	}
	return x, nil
}

// Hash is the blake2b-256 hash of an encoded extrinsic, as reported by the node.
func Hash(encoded []byte) chain.Hash {
	return blake2b.Sum256(encoded)
}

// CallIndex returns the pallet and call index of an encoded call.
func CallIndex(call []byte) ([2]byte, error) {
	var idx [2]byte
	if len(call) < len(idx) {
		return idx, fmt.Errorf("%w: call too short", ErrMalformed)
	}
	copy(idx[:], call)
	return idx, nil
}
