package heap

import (
	"bytes"
	"math"
)

// AttrType tags the column type a scan predicate compares against.
type AttrType int

const (
	AttrInteger AttrType = iota
	AttrFloat
	AttrString
)

// CompOp is the relational operator a scan predicate applies.
type CompOp int

const (
	OpLT CompOp = iota
	OpLTE
	OpEQ
	OpGTE
	OpGT
	OpNE
)

func validAttrType(t AttrType) bool {
	return t == AttrInteger || t == AttrFloat || t == AttrString
}

func validCompOp(op CompOp) bool {
	return op >= OpLT && op <= OpNE
}

// filter holds a validated (offset, length, type, value, op) scan predicate.
type filter struct {
	active bool
	offset int
	length int
	typ    AttrType
	value  []byte
	op     CompOp
}

// matches reports whether rec satisfies f. A record shorter than
// offset+length never matches.
func (f filter) matches(rec []byte) bool {
	if !f.active {
		return true
	}
	if f.offset+f.length > len(rec) {
		return false
	}
	col := rec[f.offset : f.offset+f.length]

	var diff float64
	switch f.typ {
	case AttrInteger:
		attr := int32(bytesToUint32(col))
		want := int32(bytesToUint32(f.value))
		diff = float64(attr) - float64(want)
	case AttrFloat:
		attr := math.Float32frombits(bytesToUint32(col))
		want := math.Float32frombits(bytesToUint32(f.value))
		diff = float64(attr) - float64(want)
	case AttrString:
		diff = float64(bytes.Compare(col, f.value))
	}

	switch f.op {
	case OpLT:
		return diff < 0
	case OpLTE:
		return diff <= 0
	case OpEQ:
		return diff == 0
	case OpGTE:
		return diff >= 0
	case OpGT:
		return diff > 0
	case OpNE:
		return diff != 0
	}
	return false
}

func bytesToUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
