package subtensor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"
)

var (
	ErrUnsupportedMetadata = errors.New("unsupported runtime metadata")
	ErrMalformedValue      = errors.New("malformed scale value")
)

const (
	metadataMagic  = "meta"
	maxDecodeDepth = 64
)

type defKind byte

// Kinds of a scale-info type definition.
const (
	defComposite defKind = iota
	defVariant
	defSequence
	defArray
	defTuple
	defPrimitive
	defCompact
	defBitSequence
)

// Primitive type tags of scale-info.
const (
	primBool byte = iota
	primChar
	primStr
	primU8
	primU16
	primU32
	primU64
	primU128
	primU256
	primI8
	primI16
	primI32
	primI64
	primI128
	primI256
)

var primSizes = map[byte]int{
	primBool: 1, primChar: 4,
	primU8: 1, primU16: 2, primU32: 4, primU64: 8, primU128: 16, primU256: 32,
	primI8: 1, primI16: 2, primI32: 4, primI64: 8, primI128: 16, primI256: 32,
}

type variantDef struct {
	name   string
	fields []uint32
}

type typeDef struct {
	kind     defKind
	fields   []uint32
	variants map[byte]variantDef
	elem     uint32
	length   uint32
	prim     byte
}

type palletMeta struct {
	name      string
	errors    uint32
	hasErrors bool
}

// Metadata is the part of the runtime metadata needed to read dispatch outcomes:
// the type registry, the type of System.Events and the error types of every pallet.
type Metadata struct {
	types   map[uint32]*typeDef
	events  uint32
	pallets map[byte]palletMeta
}

// reader reads scale values from an in-memory buffer.
type reader struct {
	src *bytes.Reader
	dec *scale.Decoder
}

func newReader(data []byte) *reader {
	src := bytes.NewReader(data)
	return &reader{src: src, dec: scale.NewDecoder(src)}
}

func (r *reader) bytes(n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n > uint64(r.src.Len()) {
		return nil, fmt.Errorf("%w: need %d bytes, %d left", ErrMalformedValue, n, r.src.Len())
	}
	b := make([]byte, n)
	if _, err := scale.DecodeByteArray(r.dec, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *reader) u8() (byte, error) {
	if r.src.Len() == 0 {
		return 0, fmt.Errorf("%w: unexpected end of input", ErrMalformedValue)
	}
	b, _, err := scale.DecodeByte(r.dec)
	return b, err
}

// compact reads a compact integer of any width. Values over 64 bits are returned as raw bytes.
func (r *reader) compact() (uint64, []byte, error) {
	first, err := r.u8()
	if err != nil {
		return 0, nil, err
	}
	var rest []byte
	switch first & 0b11 {
	case 0:
		return uint64(first >> 2), nil, nil
	case 1:
		rest, err = r.bytes(1)
	case 2:
		rest, err = r.bytes(3)
	default:
		rest, err = r.bytes(uint64(first>>2) + 4)
		if err != nil {
			return 0, nil, err
		}
		if len(rest) > 8 {
			return 0, rest, nil
		}
		return leUint(rest), rest, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return leUint(append([]byte{first}, rest...)) >> 2, nil, nil
}

func (r *reader) length() (uint64, error) {
	n, big, err := r.compact()
	if err != nil {
		return 0, err
	}
	if big != nil || n > uint64(r.src.Len()) {
		return 0, fmt.Errorf("%w: length exceeds input", ErrMalformedValue)
	}
	return n, nil
}

func (r *reader) typeID() (uint32, error) {
	n, big, err := r.compact()
	if err != nil {
		return 0, err
	}
	if big != nil || n > 1<<32-1 {
		return 0, fmt.Errorf("%w: type id out of range", ErrMalformedValue)
	}
	return uint32(n), nil
}

func (r *reader) str() (string, error) {
	n, err := r.length()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(n)
	return string(b), err
}

func (r *reader) skipStrings() error {
	n, err := r.length()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if _, err := r.str(); err != nil {
			return err
		}
	}
	return nil
}

// option reads an Option prefix and calls some when the value is present.
func (r *reader) option(some func() error) error {
	tag, err := r.u8()
	switch {
	case err != nil:
		return err
	case tag == 0:
		return nil
	case tag == 1:
		return some()
	default:
		return fmt.Errorf("%w: option tag %d", ErrMalformedValue, tag)
	}
}

func (r *reader) skipOptionString() error {
	return r.option(func() error {
		_, err := r.str()
		return err
	})
}

func (r *reader) skipOptionType() error {
	return r.option(func() error {
		_, err := r.typeID()
		return err
	})
}

func leUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// ParseMetadata decodes the prefixed V14 or V15 metadata returned by state_getMetadata.
func ParseMetadata(data []byte) (*Metadata, error) {
	r := newReader(data)
	magic, err := r.bytes(4)
	if err != nil || string(magic) != metadataMagic {
		return nil, fmt.Errorf("%w: missing magic", ErrUnsupportedMetadata)
	}
	version, err := r.u8()
	if err != nil {
		return nil, err
	}
	if version != 14 && version != 15 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedMetadata, version)
	}

	m := &Metadata{types: make(map[uint32]*typeDef), pallets: make(map[byte]palletMeta)}
	count, err := r.length()
	if err != nil {
		return nil, fmt.Errorf("reading type registry: %w", err)
	}
	for i := uint64(0); i < count; i++ {
		id, err := r.typeID()
		if err != nil {
			return nil, fmt.Errorf("reading type registry: %w", err)
		}
		def, err := r.typeDef()
		if err != nil {
			return nil, fmt.Errorf("reading type %d: %w", id, err)
		}
		m.types[id] = def
	}

	pallets, err := r.length()
	if err != nil {
		return nil, fmt.Errorf("reading pallets: %w", err)
	}
	foundEvents := false
	for i := uint64(0); i < pallets; i++ {
		p, events, err := r.pallet(version)
		if err != nil {
			return nil, fmt.Errorf("reading pallet %d: %w", i, err)
		}
		if events != nil {
			m.events, foundEvents = *events, true
		}
		m.pallets[p.index] = p.palletMeta
	}
	if !foundEvents {
		return nil, fmt.Errorf("%w: no System.Events storage", ErrUnsupportedMetadata)
	}
	if _, ok := m.types[m.events]; !ok {
		return nil, fmt.Errorf("%w: unknown events type %d", ErrUnsupportedMetadata, m.events)
	}
	return m, nil
}

func (r *reader) fields() ([]uint32, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	fields := make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		if err := r.skipOptionString(); err != nil {
			return nil, err
		}
		ty, err := r.typeID()
		if err != nil {
			return nil, err
		}
		if err := r.skipOptionString(); err != nil {
			return nil, err
		}
		if err := r.skipStrings(); err != nil {
			return nil, err
		}
		fields = append(fields, ty)
	}
	return fields, nil
}

func (r *reader) typeDef() (*typeDef, error) {
	// path
	if err := r.skipStrings(); err != nil {
		return nil, err
	}
	params, err := r.length()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < params; i++ {
		if _, err := r.str(); err != nil {
			return nil, err
		}
		if err := r.skipOptionType(); err != nil {
			return nil, err
		}
	}

	kind, err := r.u8()
	if err != nil {
		return nil, err
	}
	def := &typeDef{kind: defKind(kind)}
	switch def.kind {
	case defComposite:
		def.fields, err = r.fields()
	case defVariant:
		def.variants, err = r.variants()
	case defSequence, defCompact:
		def.elem, err = r.typeID()
	case defArray:
		var n []byte
		if n, err = r.bytes(4); err == nil {
			def.length = binary.LittleEndian.Uint32(n)
			def.elem, err = r.typeID()
		}
	case defTuple:
		var n uint64
		if n, err = r.length(); err == nil {
			for i := uint64(0); i < n && err == nil; i++ {
				var ty uint32
				ty, err = r.typeID()
				def.fields = append(def.fields, ty)
			}
		}
	case defPrimitive:
		def.prim, err = r.u8()
	case defBitSequence:
		if def.elem, err = r.typeID(); err == nil {
			_, err = r.typeID()
		}
	default:
		return nil, fmt.Errorf("%w: type definition %d", ErrUnsupportedMetadata, kind)
	}
	if err != nil {
		return nil, err
	}
	// docs
	return def, r.skipStrings()
}

func (r *reader) variants() (map[byte]variantDef, error) {
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	variants := make(map[byte]variantDef, n)
	for i := uint64(0); i < n; i++ {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		fields, err := r.fields()
		if err != nil {
			return nil, err
		}
		index, err := r.u8()
		if err != nil {
			return nil, err
		}
		if err := r.skipStrings(); err != nil {
			return nil, err
		}
		variants[index] = variantDef{name: name, fields: fields}
	}
	return variants, nil
}

type parsedPallet struct {
	palletMeta
	index byte
}

// pallet reads one pallet entry. events is set for the System pallet.
func (r *reader) pallet(version byte) (p parsedPallet, events *uint32, err error) {
	if p.name, err = r.str(); err != nil {
		return p, nil, err
	}
	err = r.option(func() error {
		if _, err := r.str(); err != nil {
			return err
		}
		entries, err := r.length()
		if err != nil {
			return err
		}
		for i := uint64(0); i < entries; i++ {
			ty, err := r.storageEntry(p.name)
			if err != nil {
				return err
			}
			if ty != nil {
				events = ty
			}
		}
		return nil
	})
	if err != nil {
		return p, nil, err
	}
	// calls and events
	for i := 0; i < 2; i++ {
		if err := r.skipOptionType(); err != nil {
			return p, nil, err
		}
	}
	constants, err := r.length()
	if err != nil {
		return p, nil, err
	}
	for i := uint64(0); i < constants; i++ {
		if _, err := r.str(); err != nil {
			return p, nil, err
		}
		if _, err := r.typeID(); err != nil {
			return p, nil, err
		}
		n, err := r.length()
		if err != nil {
			return p, nil, err
		}
		if _, err := r.bytes(n); err != nil {
			return p, nil, err
		}
		if err := r.skipStrings(); err != nil {
			return p, nil, err
		}
	}
	err = r.option(func() error {
		p.errors, err = r.typeID()
		p.hasErrors = err == nil
		return err
	})
	if err != nil {
		return p, nil, err
	}
	if p.index, err = r.u8(); err != nil {
		return p, nil, err
	}
	if version >= 15 {
		err = r.skipStrings()
	}
	return p, events, err
}

// storageEntry reads one storage entry and returns its type when it is System.Events.
func (r *reader) storageEntry(pallet string) (*uint32, error) {
	name, err := r.str()
	if err != nil {
		return nil, err
	}
	// modifier
	if _, err := r.u8(); err != nil {
		return nil, err
	}
	kind, err := r.u8()
	if err != nil {
		return nil, err
	}
	var events *uint32
	switch kind {
	case 0:
		ty, err := r.typeID()
		if err != nil {
			return nil, err
		}
		if pallet == "System" && name == "Events" {
			events = &ty
		}
	case 1:
		hashers, err := r.length()
		if err != nil {
			return nil, err
		}
		if _, err := r.bytes(hashers); err != nil {
			return nil, err
		}
		for i := 0; i < 2; i++ {
			if _, err := r.typeID(); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: storage entry kind %d", ErrUnsupportedMetadata, kind)
	}
	n, err := r.length()
	if err != nil {
		return nil, err
	}
	if _, err := r.bytes(n); err != nil {
		return nil, err
	}
	return events, r.skipStrings()
}
