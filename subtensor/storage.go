package subtensor

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/subtensor-tools/subreg/ss58"
)

// Twox128 is the 128 bit xxhash used for pallet and item prefixes.
func Twox128(data []byte) []byte {
	out := make([]byte, 0, 16)
	for seed := uint64(0); seed < 2; seed++ {
		h := xxhash.NewWithSeed(seed)
		h.Write(data)
		out = binary.LittleEndian.AppendUint64(out, h.Sum64())
	}
	return out
}

// Twox64Concat hashes data with 64 bit xxhash and appends data.
func Twox64Concat(data []byte) []byte {
	out := binary.LittleEndian.AppendUint64(make([]byte, 0, 8+len(data)), xxhash.Sum64(data))
	return append(out, data...)
}

// Blake2_128Concat hashes data with blake2b-128 and appends data.
func Blake2_128Concat(data []byte) []byte {
	h, _ := blake2b.New(16, nil) // only fails for invalid sizes or keys
	h.Write(data)
	return append(h.Sum(nil), data...)
}

func Identity(data []byte) []byte {
	return data
}

// StorageKey builds the key of a storage item of pallet from already hashed map keys.
func StorageKey(pallet, item string, keys ...[]byte) []byte {
	key := append(Twox128([]byte(pallet)), Twox128([]byte(item))...)
	for _, k := range keys {
		key = append(key, k...)
	}
	return key
}

func u16Key(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

// Storage items of the subtensor pallet.

func networksAddedKey(netuid uint16) []byte {
	return StorageKey(palletName, "NetworksAdded", Identity(u16Key(netuid)))
}

func uidsKey(netuid uint16, hotkey ss58.AccountID) []byte {
	return StorageKey(palletName, "Uids", Identity(u16Key(netuid)), Blake2_128Concat(hotkey[:]))
}

func ownerKey(hotkey ss58.AccountID) []byte {
	return StorageKey(palletName, "Owner", Blake2_128Concat(hotkey[:]))
}

func difficultyKey(netuid uint16) []byte {
	return StorageKey(palletName, "Difficulty", Identity(u16Key(netuid)))
}

const palletName = "SubtensorModule"

// DefaultDifficulty is the runtime default of the Difficulty item.
const DefaultDifficulty = 10_000_000
