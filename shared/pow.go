package shared

import (
	"bytes"
	"encoding/binary"
	"hash"
	"math"
	"math/bits"

	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// BlockAndHotkeyHash binds a PoW search to a block and a hotkey.
//
// It is keccak256(blockHash || hotkey).
func BlockAndHotkeyHash(blockHash, hotkey []byte) []byte {
	kec := sha3.NewLegacyKeccak256()
	kec.Write(blockHash)
	kec.Write(hotkey)
	return kec.Sum(nil)
}

// SearchSealNonce checks count nonces starting at start.
// It returns found=false when none of them solves the difficulty.
func SearchSealNonce(p *SealHasher, difficulty, start, count uint64) (nonce uint64, seal []byte, found bool) {
	end := start + count
	if end < start {
		end = math.MaxUint64
	}
	for nonce = start; nonce < end; nonce++ {
		seal = p.Seal(nonce, seal[:0])
		if SealMeetsDifficulty(seal, difficulty) {
			return nonce, seal, true
		}
	}
	return 0, nil, false
}

// SealHasher computes registration seals for one block and hotkey.
// It is NOT safe for concurrent use; create one per worker.
type SealHasher struct {
	sha    hash.Hash
	kec    hash.Hash
	input  []byte
	digest []byte
}

func NewSealHasher(blockAndHotkey []byte) *SealHasher {
	h := &SealHasher{
		sha:   sha256.New(),
		kec:   sha3.NewLegacyKeccak256(),
		input: make([]byte, 8, 8+32), // nonce placeholder
	}
	if len(blockAndHotkey) > 32 {
		blockAndHotkey = blockAndHotkey[:32]
	}
	h.input = append(h.input, blockAndHotkey...)
	return h
}

// Seal computes keccak256(sha256(nonce_le || blockAndHotkey)) and appends it to output.
func (p *SealHasher) Seal(nonce uint64, output []byte) []byte {
	binary.LittleEndian.PutUint64(p.input[:8], nonce)

	p.sha.Reset()
	p.sha.Write(p.input)
	p.digest = p.sha.Sum(p.digest[:0])

	p.kec.Reset()
	p.kec.Write(p.digest)
	return p.kec.Sum(output)
}

// SealMeetsDifficulty reports whether seal * difficulty < 2^256 - 1,
// with seal read as a big-endian 256 bit integer.
func SealMeetsDifficulty(seal []byte, difficulty uint64) bool {
	if len(seal) != 32 {
		return false
	}
	var carry uint64
	allOnes := true
	for i := 0; i < 4; i++ {
		limb := binary.BigEndian.Uint64(seal[32-8*(i+1) : 32-8*i])
		hi, lo := bits.Mul64(limb, difficulty)
		var c uint64
		lo, c = bits.Add64(lo, carry, 0)
		carry = hi + c
		if lo != math.MaxUint64 {
			allOnes = false
		}
	}
	return carry == 0 && !allOnes
}

// VerifySeal recomputes the seal for the given inputs and checks it against
// the claimed one and the difficulty.
func VerifySeal(blockHash, hotkey []byte, nonce, difficulty uint64, seal []byte) bool {
	expected := NewSealHasher(BlockAndHotkeyHash(blockHash, hotkey)).Seal(nonce, nil)
	return bytes.Equal(seal, expected) && SealMeetsDifficulty(seal, difficulty)
}
