package mdg

import (
	"math/rand/v2"
	"strings"
)

// Fault is a way to damage an otherwise valid message.
type Fault uint8

const (
	FaultNone Fault = iota
	// FaultTruncate cuts the message in half.
	FaultTruncate
	// FaultDropField removes the price field.
	FaultDropField
	// FaultGarbage prefixes non-JSON noise.
	FaultGarbage
	// FaultNotObject wraps the message in an array.
	FaultNotObject
)

func (f Fault) String() string {
	switch f {
	case FaultTruncate:
		return "truncate"
	case FaultDropField:
		return "drop_field"
	case FaultGarbage:
		return "garbage"
	case FaultNotObject:
		return "not_object"
	default:
		return "none"
	}
}

// Corrupt applies f to raw.
func Corrupt(raw string, f Fault) string {
	switch f {
	case FaultTruncate:
		return raw[:len(raw)/2]
	case FaultDropField:
		start := strings.Index(raw, `"p":`)
		if start < 0 {
			return raw
		}
		end := strings.IndexByte(raw[start:], ',')
		if end < 0 {
			return raw
		}
		return raw[:start] + raw[start+end+1:]
	case FaultGarbage:
		return "#noise#" + raw
	case FaultNotObject:
		return "[" + raw + "]"
	default:
		return raw
	}
}

// RandomFault returns a fault with probability rate, FaultNone otherwise.
func RandomFault(rng *rand.Rand, rate float64) Fault {
	if rate <= 0 || rng.Float64() >= rate {
		return FaultNone
	}
	return Fault(1 + rng.IntN(int(FaultNotObject)))
}
