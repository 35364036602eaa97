package encoder

import (
	"strconv"

	"mercator-hq/webdis/pkg/resp"
)

// encodeRaw renders a reply as plain text. Bulk and status bytes pass through
// untouched, so a single bulk reply round-trips byte for byte. Arrays put one
// element per line; nil renders as nothing.
func encodeRaw(v resp.Value) []byte {
	return appendRaw(nil, v)
}

func appendRaw(dst []byte, v resp.Value) []byte {
	switch v.Kind {
	case resp.KindStatus, resp.KindError, resp.KindBulk:
		return append(dst, v.Str...)
	case resp.KindInteger:
		return strconv.AppendInt(dst, v.Int, 10)
	case resp.KindArray:
		for i, elem := range v.Array {
			if i > 0 {
				dst = append(dst, '\n')
			}
			dst = appendRaw(dst, elem)
		}
		return dst
	default:
		return dst
	}
}
