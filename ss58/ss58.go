// Package ss58 implements the Substrate SS58 address format.
package ss58

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultPrefix is the generic Substrate network prefix used by subtensor.
const DefaultPrefix uint16 = 42

const (
	publicKeySize = 32
	checksumSize  = 2
)

var (
	ErrInvalidAddress  = errors.New("invalid ss58 address")
	ErrInvalidChecksum = errors.New("invalid ss58 checksum")
	ErrInvalidPrefix   = errors.New("invalid ss58 prefix")
)

var checksumPrefix = []byte("SS58PRE")

// AccountID is a 32 byte public key as used by the chain.
type AccountID [publicKeySize]byte

// NewAccountID copies a raw public key into an AccountID.
func NewAccountID(pub []byte) (AccountID, error) {
	var id AccountID
	if len(pub) != publicKeySize {
		return id, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidAddress, publicKeySize, len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

// Parse decodes an ss58 address, ignoring the network prefix.
func Parse(addr string) (AccountID, error) {
	id, _, err := Decode(addr)
	return id, err
}

// MustParse is like Parse but panics on error.
func MustParse(addr string) AccountID {
	id, err := Parse(addr)
	if err != nil {
		panic(err)
	}
	return id
}

func (a AccountID) Bytes() []byte {
	return a[:]
}

func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// String encodes the account with DefaultPrefix.
func (a AccountID) String() string {
	return Encode(a[:], DefaultPrefix)
}

func (a AccountID) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// UnmarshalFlag implements flags.Unmarshaler.
func (a *AccountID) UnmarshalFlag(value string) error {
	return a.UnmarshalText([]byte(value))
}

// Encode returns the ss58 representation of pub for the given network prefix.
func Encode(pub []byte, prefix uint16) string {
	var raw []byte
	switch {
	case prefix < 64:
		raw = append(raw, byte(prefix))
	default:
		raw = append(raw,
			byte((prefix&0x00fc)>>2)|0x40,
			byte(prefix>>8)|byte((prefix&0x0003)<<6),
		)
	}
	raw = append(raw, pub...)
	raw = append(raw, checksum(raw)...)
	return base58.Encode(raw)
}

// Decode parses addr and returns the public key and the network prefix.
func Decode(addr string) (AccountID, uint16, error) {
	var id AccountID
	raw, err := base58.Decode(addr)
	if err != nil {
		return id, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) == 0 {
		return id, 0, ErrInvalidAddress
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix, prefixLen = uint16(raw[0]), 1
	case raw[0] < 128:
		if len(raw) < 2 {
			return id, 0, ErrInvalidPrefix
		}
		lower := (raw[0]&0x3f)<<2 | raw[1]>>6
		upper := raw[1] & 0x3f
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return id, 0, fmt.Errorf("%w: first byte %#x", ErrInvalidPrefix, raw[0])
	}

	if len(raw) != prefixLen+publicKeySize+checksumSize {
		return id, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidAddress, len(raw))
	}
	body := raw[:len(raw)-checksumSize]
	if !bytes.Equal(checksum(body), raw[len(raw)-checksumSize:]) {
		return id, 0, ErrInvalidChecksum
	}
	copy(id[:], body[prefixLen:])
	return id, prefix, nil
}

func checksum(body []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(checksumPrefix)
	h.Write(body)
	return h.Sum(nil)[:checksumSize]
}
