package extrinsic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/spacemeshos/go-scale"
)

const (
	minEraPeriod = 4
	maxEraPeriod = 1 << 16
)

var ErrInvalidEra = errors.New("invalid era")

// Era is the validity window of an extrinsic. The zero value is immortal.
type Era struct {
	period uint64
	phase  uint64
}

func Immortal() Era {
	return Era{}
}

// Mortal returns an era valid for about period blocks starting at current.
// The period is rounded up to a power of two in [4, 65536].
func Mortal(period, current uint64) Era {
	p := uint64(1) << bits.Len64(period-1)
	switch {
	case period <= minEraPeriod:
		p = minEraPeriod
	case p > maxEraPeriod:
		p = maxEraPeriod
	}
	q := quantizeFactor(p)
	phase := current % p / q * q
	return Era{period: p, phase: phase}
}

func quantizeFactor(period uint64) uint64 {
	if q := period >> 12; q > 1 {
		return q
	}
	return 1
}

func (e Era) IsImmortal() bool {
	return e.period == 0
}

func (e Era) Period() uint64 {
	return e.period
}

func (e Era) Phase() uint64 {
	return e.phase
}

// Birth is the first block at which an extrinsic built at current is valid.
func (e Era) Birth(current uint64) uint64 {
	if e.IsImmortal() {
		return 0
	}
	c := current
	if c < e.phase {
		c = e.phase
	}
	return (c-e.phase)/e.period*e.period + e.phase
}

// Death is the first block at which an extrinsic built at current is no longer valid.
func (e Era) Death(current uint64) uint64 {
	if e.IsImmortal() {
		return ^uint64(0)
	}
	return e.Birth(current) + e.period
}

func (e Era) String() string {
	if e.IsImmortal() {
		return "immortal"
	}
	return fmt.Sprintf("mortal(period=%d, phase=%d)", e.period, e.phase)
}

func (e *Era) EncodeScale(enc *scale.Encoder) (int, error) {
	if e.IsImmortal() {
		return scale.EncodeByteArray(enc, []byte{0})
	}
	low := bits.TrailingZeros64(e.period) - 1
	if low < 1 {
		low = 1
	}
	if low > 15 {
		low = 15
	}
	encoded := uint16(low) | uint16(e.phase/quantizeFactor(e.period))<<4
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], encoded)
	return scale.EncodeByteArray(enc, buf[:])
}

func (e *Era) DecodeScale(dec *scale.Decoder) (int, error) {
	var first [1]byte
	n, err := scale.DecodeByteArray(dec, first[:])
	if err != nil {
		return n, err
	}
	if first[0] == 0 {
		*e = Immortal()
		return n, nil
	}
	var second [1]byte
	m, err := scale.DecodeByteArray(dec, second[:])
	n += m
	if err != nil {
		return n, err
	}
	encoded := uint16(first[0]) | uint16(second[0])<<8
	period := uint64(2) << (encoded % 16)
	phase := uint64(encoded>>4) * quantizeFactor(period)
	if period < minEraPeriod || phase >= period {
		return n, fmt.Errorf("%w: period %d phase %d", ErrInvalidEra, period, phase)
	}
	*e = Era{period: period, phase: phase}
	return n, nil
}
