package sim

import (
	"fmt"
	"strings"
)

// Kind is the logic function of a process.
type Kind string

const (
	KindBuf  Kind = "buf"
	KindNot  Kind = "not"
	KindAnd  Kind = "and"
	KindOr   Kind = "or"
	KindXor  Kind = "xor"
	KindNand Kind = "nand"
	KindNor  Kind = "nor"
)

// Kinds lists every supported process kind.
var Kinds = []Kind{KindBuf, KindNot, KindAnd, KindOr, KindXor, KindNand, KindNor}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid process kind: %q", s)
}

// unary reports whether the kind takes exactly one input.
func (k Kind) unary() bool { return k == KindBuf || k == KindNot }

// eval computes the bitwise function over the inputs. The caller masks the
// result to the output width.
func (k Kind) eval(in []uint64) uint64 {
	acc := in[0]
	for _, v := range in[1:] {
		switch k {
		case KindAnd, KindNand:
			acc &= v
		case KindOr, KindNor:
			acc |= v
		case KindXor:
			acc ^= v
		}
	}
	switch k {
	case KindNot, KindNand, KindNor:
		return ^acc
	}
	return acc
}

// process is a bound gate: inputs and output are resolved signal indices.
type process struct {
	inst   int
	kind   Kind
	inputs []Ref
	sigs   []int // signal index per input
	output Ref
	outSig int
	delay  Delay
}

// ProcessSpec declares a process bound to an instance.
type ProcessSpec struct {
	Instance string
	Kind     Kind
	Inputs   []Ref
	Output   Ref
	// Delay before the output is driven. Zero means one delta step.
	Delay Delay
}
