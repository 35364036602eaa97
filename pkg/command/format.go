package command

import (
	"mime"
	"strings"
)

// OutputFormat selects the reply encoding.
type OutputFormat uint8

const (
	FormatJSON OutputFormat = iota
	FormatRaw
	FormatMsgPack
)

// Content types for each format.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeJSONP   = "application/javascript; charset=utf-8"
	ContentTypeRaw     = "text/plain"
	ContentTypeMsgPack = "application/x-msgpack"
)

func (f OutputFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatMsgPack:
		return "msgpack"
	default:
		return "json"
	}
}

// ContentType returns the HTTP content type for f.
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatRaw:
		return ContentTypeRaw
	case FormatMsgPack:
		return ContentTypeMsgPack
	default:
		return ContentTypeJSON
	}
}

// ParseFormatToken maps a suffix or ?type= value to a format.
func ParseFormatToken(tok string) (OutputFormat, bool) {
	switch strings.ToLower(tok) {
	case "json":
		return FormatJSON, true
	case "raw":
		return FormatRaw, true
	case "msg", "msgpack":
		return FormatMsgPack, true
	default:
		return FormatJSON, false
	}
}

// formatFromAccept picks the first media type in an Accept header that maps
// to a known format. Wildcards are ignored.
func formatFromAccept(accept string) (OutputFormat, bool) {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case ContentTypeJSON:
			return FormatJSON, true
		case ContentTypeRaw:
			return FormatRaw, true
		case ContentTypeMsgPack, "application/msgpack":
			return FormatMsgPack, true
		}
	}
	return FormatJSON, false
}
