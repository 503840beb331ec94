package shared

import (
	"encoding/hex"

	"go.uber.org/zap/zapcore"
)

// DefaultStaleTolerance is how many blocks a solution may lag behind the head
// before the chain refuses it.
const DefaultStaleTolerance = 3

// Solution is a solved registration puzzle anchored to a block.
type Solution struct {
	BlockNumber uint64
	Nonce       uint64
	Seal        []byte
	Difficulty  uint64
}

// IsStale reports whether sol can no longer be submitted at currentBlock.
// It must be evaluated against a freshly read head every time.
func IsStale(sol *Solution, currentBlock, tolerance uint64) bool {
	return sol.BlockNumber+tolerance < currentBlock
}

// implement zap.ObjectMarshaler interface.
func (s *Solution) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("block", s.BlockNumber)
	enc.AddUint64("nonce", s.Nonce)
	enc.AddUint64("difficulty", s.Difficulty)
	enc.AddString("seal", hex.EncodeToString(s.Seal))
	return nil
}
