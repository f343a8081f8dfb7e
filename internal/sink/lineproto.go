package sink

import (
	"strconv"
)

// AppendLine renders p in InfluxDB line protocol and appends it to dst:
//
//	order_book,kind=oba,side=buy,symbol=AAPL price=150.25,quantity=100i,order_id="ID1",... 1700000000000
//
// Tags with empty values are omitted. The timestamp is written as received.
func AppendLine(dst []byte, p Point) []byte {
	dst = appendEscaped(dst, p.Measurement, ", ")
	dst = appendTag(dst, "kind", string(p.Kind))
	dst = appendTag(dst, "side", p.Side)
	dst = appendTag(dst, "symbol", p.Symbol)

	dst = append(dst, ' ')
	dst = append(dst, "price="...)
	dst = strconv.AppendFloat(dst, p.Price, 'f', -1, 64)
	dst = append(dst, ",quantity="...)
	dst = strconv.AppendInt(dst, p.Quantity, 10)
	dst = append(dst, 'i')
	dst = appendStringField(dst, "order_id", p.OrderID)
	dst = appendStringField(dst, "attribution", p.Attribution)
	dst = appendStringField(dst, "match_id", p.MatchID)
	if p.RunID != "" {
		dst = appendStringField(dst, "run_id", p.RunID)
	}
	if p.Seq != 0 {
		dst = append(dst, ",seq="...)
		dst = strconv.AppendUint(dst, p.Seq, 10)
		dst = append(dst, 'u')
	}

	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, p.Timestamp, 10)
	return dst
}

func appendTag(dst []byte, key, value string) []byte {
	if value == "" {
		return dst
	}
	dst = append(dst, ',')
	dst = append(dst, key...)
	dst = append(dst, '=')
	return appendEscaped(dst, value, ", =")
}

func appendStringField(dst []byte, key, value string) []byte {
	dst = append(dst, ',')
	dst = append(dst, key...)
	dst = append(dst, '=', '"')
	dst = appendEscaped(dst, value, `"\`)
	return append(dst, '"')
}

func appendEscaped(dst []byte, s, special string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' {
			dst = append(dst, '\\', 'n')
			continue
		}
		for j := 0; j < len(special); j++ {
			if special[j] == c {
				dst = append(dst, '\\')
				break
			}
		}
		dst = append(dst, c)
	}
	return dst
}
