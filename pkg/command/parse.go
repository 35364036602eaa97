package command

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
)

// Parser limits. Zero disables the corresponding check.
type Options struct {
	// MaxBodySize caps POST and PUT bodies in bytes.
	MaxBodySize int64

	// MaxURILength caps the raw request URI in bytes.
	MaxURILength int

	// DefaultRoot is the command path executed for "GET /", e.g. "/GET/index.html".
	DefaultRoot string
}

// Parser builds commands from HTTP requests.
type Parser struct {
	opts Options
}

// NewParser creates a parser with the given limits.
func NewParser(opts Options) *Parser {
	return &Parser{opts: opts}
}

// ParseHTTP parses r into a command and its request context.
//
// GET takes the command from the path. POST takes it from the body and
// ignores the path. PUT takes the command and all but the last argument
// from the path and the final argument, byte for byte, from the body.
func (p *Parser) ParseHTTP(r *http.Request) (Command, RequestContext, error) {
	rc := newRequestContext(r)

	if p.opts.MaxURILength > 0 && len(r.RequestURI) > p.opts.MaxURILength {
		return Command{}, rc, fmt.Errorf("%w: %d bytes exceeds %d", ErrURITooLong, len(r.RequestURI), p.opts.MaxURILength)
	}

	query := r.URL.Query()
	if cb := firstNonEmpty(query.Get("jsonp"), query.Get("callback")); cb != "" {
		if !validCallback(cb) {
			return Command{}, rc, fmt.Errorf("%w: invalid JSONP callback %q", ErrMalformedCommand, cb)
		}
		rc.Callback = cb
	}

	var (
		cmd       Command
		suffixFmt OutputFormat
		hasSuffix bool
		err       error
	)

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		path := r.URL.EscapedPath()
		if strings.Trim(path, "/") == "" && p.opts.DefaultRoot != "" {
			path = p.opts.DefaultRoot
		}
		cmd, suffixFmt, hasSuffix, err = parsePath(path, true)

	case http.MethodPost:
		var body []byte
		body, err = p.readBody(r)
		if err != nil {
			return Command{}, rc, err
		}
		rc.BytesIn = len(body)
		cmd, _, _, err = parsePath(string(body), false)

	case http.MethodPut:
		cmd, suffixFmt, hasSuffix, err = parsePath(r.URL.EscapedPath(), true)
		if err != nil {
			break
		}
		var body []byte
		body, err = p.readBody(r)
		if err != nil {
			return Command{}, rc, err
		}
		rc.BytesIn = len(body)
		cmd.Args = append(cmd.Args, body)

	default:
		return Command{}, rc, fmt.Errorf("%w: method %s not supported", ErrMalformedCommand, r.Method)
	}
	if err != nil {
		return Command{}, rc, err
	}

	rc.Format = selectFormat(query.Get("type"), suffixFmt, hasSuffix, r.Header.Get("Accept"))
	return cmd, rc, nil
}

// readBody reads at most MaxBodySize bytes. The declared Content-Length is
// checked first so oversized uploads are refused without reading them.
func (p *Parser) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	max := p.opts.MaxBodySize
	if max > 0 && r.ContentLength > max {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrRequestTooLarge, r.ContentLength, max)
	}

	var src io.Reader = r.Body
	if max > 0 {
		src = io.LimitReader(r.Body, max+1)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if max > 0 && int64(len(body)) > max {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrRequestTooLarge, max)
	}
	return body, nil
}

// parsePath splits an escaped "/CMD/arg0/.../argN" string into a command.
// Leading slashes are skipped; every later segment is an argument, so a
// trailing slash yields a final empty argument ("/SET/k/" sets k to ""). When
// allowSuffix is set, a recognized ".fmt" on the last segment is stripped.
// The suffix is matched before percent-decoding, so "%2Ejson" stays literal.
func parsePath(escaped string, allowSuffix bool) (Command, OutputFormat, bool, error) {
	trimmed := strings.TrimLeft(escaped, "/")
	if trimmed == "" {
		return Command{}, FormatJSON, false, fmt.Errorf("%w: empty command", ErrMalformedCommand)
	}

	segments := strings.Split(trimmed, "/")

	format, hasSuffix := FormatJSON, false
	if allowSuffix {
		last := segments[len(segments)-1]
		if dot := strings.LastIndexByte(last, '.'); dot >= 0 {
			if f, ok := ParseFormatToken(last[dot+1:]); ok {
				format, hasSuffix = f, true
				segments[len(segments)-1] = last[:dot]
			}
		}
	}

	name, err := url.PathUnescape(segments[0])
	if err != nil {
		return Command{}, FormatJSON, false, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if name == "" {
		return Command{}, FormatJSON, false, fmt.Errorf("%w: empty command", ErrMalformedCommand)
	}

	args := make([][]byte, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		arg, err := url.PathUnescape(seg)
		if err != nil {
			return Command{}, FormatJSON, false, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
		}
		args = append(args, []byte(arg))
	}

	return Command{Name: name, Args: args}, format, hasSuffix, nil
}

// selectFormat applies precedence: ?type=, then path suffix, then Accept.
func selectFormat(typeParam string, suffix OutputFormat, hasSuffix bool, accept string) OutputFormat {
	if f, ok := ParseFormatToken(typeParam); ok {
		return f
	}
	if hasSuffix {
		return suffix
	}
	if f, ok := formatFromAccept(accept); ok {
		return f
	}
	return FormatJSON
}

func newRequestContext(r *http.Request) RequestContext {
	rc := RequestContext{
		Transport: TransportHTTP,
		RemoteIP:  RemoteIP(r.RemoteAddr),
	}
	if user, pass, ok := r.BasicAuth(); ok {
		rc.Username, rc.Password, rc.HasCredentials = user, pass, true
	}
	return rc
}

// RemoteIP extracts the client address from an http.Request RemoteAddr.
// It returns the zero Addr when the address cannot be parsed.
func RemoteIP(remoteAddr string) netip.Addr {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

func validCallback(cb string) bool {
	if len(cb) > 128 {
		return false
	}
	for _, c := range cb {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '$':
		default:
			return false
		}
	}
	return true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
