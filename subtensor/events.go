package subtensor

import (
	"errors"
	"fmt"
)

var ErrNoDispatchOutcome = errors.New("dispatch outcome not found")

// value is a decoded scale value. Variants carry their name, composites and
// sequences their fields, unsigned integers up to 64 bits their number and byte
// strings their raw bytes.
type value struct {
	name   string
	fields []value
	num    uint64
	raw    []byte
}

func (m *Metadata) decode(r *reader, id uint32, depth int) (value, error) {
	if depth > maxDecodeDepth {
		return value{}, fmt.Errorf("%w: nesting too deep", ErrMalformedValue)
	}
	def, ok := m.types[id]
	if !ok {
		return value{}, fmt.Errorf("%w: unknown type %d", ErrMalformedValue, id)
	}

	switch def.kind {
	case defComposite, defTuple:
		return m.decodeFields(r, def.fields, depth)
	case defVariant:
		index, err := r.u8()
		if err != nil {
			return value{}, err
		}
		variant, ok := def.variants[index]
		if !ok {
			return value{}, fmt.Errorf("%w: type %d has no variant %d", ErrMalformedValue, id, index)
		}
		v, err := m.decodeFields(r, variant.fields, depth)
		v.name = variant.name
		v.num = uint64(index)
		return v, err
	case defSequence:
		n, err := r.length()
		if err != nil {
			return value{}, err
		}
		return m.decodeElems(r, def.elem, n, depth)
	case defArray:
		return m.decodeElems(r, def.elem, uint64(def.length), depth)
	case defPrimitive:
		return decodePrimitive(r, def.prim)
	case defCompact:
		n, big, err := r.compact()
		return value{num: n, raw: big}, err
	case defBitSequence:
		bits, err := r.length()
		if err != nil {
			return value{}, err
		}
		store, ok := m.types[def.elem]
		if !ok || store.kind != defPrimitive || primSizes[store.prim] == 0 {
			return value{}, fmt.Errorf("%w: bit sequence store %d", ErrMalformedValue, def.elem)
		}
		width := uint64(primSizes[store.prim])
		raw, err := r.bytes((bits + width*8 - 1) / (width * 8) * width)
		return value{raw: raw}, err
	default:
		return value{}, fmt.Errorf("%w: type definition %d", ErrMalformedValue, def.kind)
	}
}

func (m *Metadata) decodeFields(r *reader, fields []uint32, depth int) (value, error) {
	v := value{fields: make([]value, 0, len(fields))}
	for _, ty := range fields {
		f, err := m.decode(r, ty, depth+1)
		if err != nil {
			return value{}, err
		}
		v.fields = append(v.fields, f)
	}
	return v, nil
}

func (m *Metadata) decodeElems(r *reader, elem uint32, n uint64, depth int) (value, error) {
	if def, ok := m.types[elem]; ok && def.kind == defPrimitive && def.prim == primU8 {
		raw, err := r.bytes(n)
		return value{raw: raw}, err
	}
	if n > uint64(r.src.Len()) {
		return value{}, fmt.Errorf("%w: %d elements exceed input", ErrMalformedValue, n)
	}
	v := value{fields: make([]value, 0, n)}
	for i := uint64(0); i < n; i++ {
		e, err := m.decode(r, elem, depth+1)
		if err != nil {
			return value{}, err
		}
		v.fields = append(v.fields, e)
	}
	return v, nil
}

func decodePrimitive(r *reader, prim byte) (value, error) {
	if prim == primStr {
		s, err := r.str()
		return value{raw: []byte(s)}, err
	}
	size, ok := primSizes[prim]
	if !ok {
		return value{}, fmt.Errorf("%w: primitive %d", ErrMalformedValue, prim)
	}
	b, err := r.bytes(uint64(size))
	if err != nil {
		return value{}, err
	}
	if size > 8 {
		return value{raw: b}, nil
	}
	return value{num: leUint(b)}, nil
}

// DispatchOutcome finds the System.ExtrinsicSuccess or System.ExtrinsicFailed event
// of the extrinsic at index in the encoded System.Events of a block. It returns an
// empty string when the extrinsic succeeded and the described dispatch error otherwise.
func (m *Metadata) DispatchOutcome(events []byte, index uint32) (string, error) {
	r := newReader(events)
	records, err := m.decode(r, m.events, 0)
	if err != nil {
		return "", fmt.Errorf("decoding events: %w", err)
	}
	for _, record := range records.fields {
		if len(record.fields) < 2 {
			continue
		}
		phase, event := record.fields[0], record.fields[1]
		if phase.name != "ApplyExtrinsic" || len(phase.fields) != 1 || phase.fields[0].num != uint64(index) {
			continue
		}
		if event.name != "System" || len(event.fields) != 1 {
			continue
		}
		switch system := event.fields[0]; system.name {
		case "ExtrinsicSuccess":
			return "", nil
		case "ExtrinsicFailed":
			if len(system.fields) == 0 {
				return "", fmt.Errorf("%w: ExtrinsicFailed without dispatch error", ErrMalformedValue)
			}
			return m.describe(system.fields[0]), nil
		}
	}
	return "", fmt.Errorf("%w: no event for extrinsic %d", ErrNoDispatchOutcome, index)
}

// describe names a DispatchError. Module errors are named <Pallet>.<Error>.
func (m *Metadata) describe(dispatchErr value) string {
	if dispatchErr.name == "Module" {
		fields := dispatchErr.fields
		// ModuleError { index, error }
		if len(fields) == 1 && len(fields[0].fields) >= 2 {
			fields = fields[0].fields
		}
		if len(fields) >= 2 {
			pallet := byte(fields[0].num)
			index := byte(fields[1].num)
			if len(fields[1].raw) > 0 {
				index = fields[1].raw[0]
			}
			if p, ok := m.pallets[pallet]; ok {
				if def, ok := m.types[p.errors]; p.hasErrors && ok && def.kind == defVariant {
					if v, ok := def.variants[index]; ok {
						return p.name + "." + v.name
					}
				}
				return fmt.Sprintf("%s.Error(%d)", p.name, index)
			}
			return fmt.Sprintf("Module(%d, %d)", pallet, index)
		}
	}
	name := dispatchErr.name
	if len(dispatchErr.fields) == 1 && dispatchErr.fields[0].name != "" {
		name += "." + dispatchErr.fields[0].name
	}
	if name == "" {
		return "unknown dispatch error"
	}
	return name
}
