package redistest

import (
	"errors"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"mercator-hq/webdis/pkg/resp"
)

type conn struct {
	srv *Server
	nc  net.Conn

	wmu sync.Mutex
	w   *resp.Writer

	smu      sync.Mutex
	channels map[string]struct{}
	patterns map[string]struct{}

	authed bool
}

func (c *conn) serve() {
	defer c.nc.Close()

	r := resp.NewReader(c.nc)
	for {
		req, err := r.ReadValue()
		if err != nil {
			return
		}
		if req.Kind != resp.KindArray || len(req.Array) == 0 {
			c.reply(resp.Error("ERR Protocol error: expected array"))
			continue
		}

		name := strings.ToUpper(string(req.Array[0].Str))
		args := make([][]byte, 0, len(req.Array)-1)
		for _, v := range req.Array[1:] {
			args = append(args, v.Str)
		}

		handler, delay := c.srv.lookup(name)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.srv.closed:
				return
			}
		}

		if handler != nil {
			v, err := handler(args)
			if errors.Is(err, ErrHangUp) {
				return
			}
			c.reply(v)
			continue
		}

		if !c.authed && name != "AUTH" && name != "HELLO" {
			c.reply(resp.Error("NOAUTH Authentication required."))
			continue
		}

		for _, v := range c.exec(name, args) {
			c.reply(v)
		}
	}
}

func (c *conn) reply(v resp.Value) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.w.WriteValue(v)
	_ = c.w.Flush()
}

func wrongArgs(name string) resp.Value {
	return resp.Error("ERR wrong number of arguments for '" + strings.ToLower(name) + "' command")
}

// exec runs a built-in command. Subscription commands produce one reply
// per channel, so the result is a slice.
func (c *conn) exec(name string, args [][]byte) []resp.Value {
	one := func(v resp.Value) []resp.Value { return []resp.Value{v} }
	s := c.srv

	switch name {
	case "AUTH":
		pass := ""
		switch len(args) {
		case 1:
			pass = string(args[0])
		case 2:
			pass = string(args[1])
		default:
			return one(wrongArgs(name))
		}
		if s.password == "" {
			return one(resp.Error("ERR AUTH <password> called without any password configured for the default user."))
		}
		if pass != s.password {
			return one(resp.Error("WRONGPASS invalid username-password pair or user is disabled."))
		}
		c.authed = true
		return one(resp.Status("OK"))

	case "HELLO", "CLIENT":
		return one(resp.Error("ERR unknown command '" + strings.ToLower(name) + "'"))

	case "SELECT":
		if len(args) != 1 {
			return one(wrongArgs(name))
		}
		if _, err := strconv.Atoi(string(args[0])); err != nil {
			return one(resp.Error("ERR value is not an integer or out of range"))
		}
		return one(resp.Status("OK"))

	case "PING":
		if c.subscribed() {
			msg := []byte{}
			if len(args) > 0 {
				msg = args[0]
			}
			return one(resp.Array(resp.BulkString("pong"), resp.Bulk(msg)))
		}
		if len(args) > 0 {
			return one(resp.Bulk(args[0]))
		}
		return one(resp.Status("PONG"))

	case "ECHO":
		if len(args) != 1 {
			return one(wrongArgs(name))
		}
		return one(resp.Bulk(args[0]))

	case "GET":
		if len(args) != 1 {
			return one(wrongArgs(name))
		}
		v, ok := s.Get(string(args[0]))
		if !ok {
			return one(resp.Nil())
		}
		return one(resp.Bulk(v))

	case "SET":
		if len(args) < 2 {
			return one(wrongArgs(name))
		}
		s.Set(string(args[0]), append([]byte(nil), args[1]...))
		return one(resp.Status("OK"))

	case "DEL":
		if len(args) == 0 {
			return one(wrongArgs(name))
		}
		s.mu.Lock()
		var n int64
		for _, k := range args {
			if _, ok := s.data[string(k)]; ok {
				delete(s.data, string(k))
				n++
			}
		}
		s.mu.Unlock()
		return one(resp.Integer(n))

	case "INCR":
		if len(args) != 1 {
			return one(wrongArgs(name))
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		cur := int64(0)
		if v, ok := s.data[string(args[0])]; ok {
			n, err := strconv.ParseInt(string(v), 10, 64)
			if err != nil {
				return one(resp.Error("ERR value is not an integer or out of range"))
			}
			cur = n
		}
		cur++
		s.data[string(args[0])] = []byte(strconv.FormatInt(cur, 10))
		return one(resp.Integer(cur))

	case "FLUSHALL", "FLUSHDB":
		s.mu.Lock()
		s.data = make(map[string][]byte)
		s.mu.Unlock()
		return one(resp.Status("OK"))

	case "DEBUG":
		if len(args) == 2 && strings.EqualFold(string(args[0]), "SLEEP") {
			secs, err := strconv.ParseFloat(string(args[1]), 64)
			if err != nil {
				return one(resp.Error("ERR value is not a valid float"))
			}
			time.Sleep(time.Duration(secs * float64(time.Second)))
			return one(resp.Status("OK"))
		}
		return one(resp.Error("ERR unknown subcommand"))

	case "MGET":
		items := make([]resp.Value, 0, len(args))
		for _, k := range args {
			if v, ok := s.Get(string(k)); ok {
				items = append(items, resp.Bulk(v))
			} else {
				items = append(items, resp.Nil())
			}
		}
		return one(resp.Array(items...))

	case "PUBLISH":
		if len(args) != 2 {
			return one(wrongArgs(name))
		}
		return one(resp.Integer(int64(s.Publish(string(args[0]), args[1]))))

	case "SUBSCRIBE", "PSUBSCRIBE":
		if len(args) == 0 {
			return one(wrongArgs(name))
		}
		kind := strings.ToLower(name)
		out := make([]resp.Value, 0, len(args))
		for _, a := range args {
			n := c.subscribe(name == "PSUBSCRIBE", string(a))
			out = append(out, resp.Array(resp.BulkString(kind), resp.Bulk(a), resp.Integer(n)))
		}
		return out

	case "UNSUBSCRIBE", "PUNSUBSCRIBE":
		kind := strings.ToLower(name)
		pattern := name == "PUNSUBSCRIBE"
		targets := args
		if len(targets) == 0 {
			targets = c.subscriptions(pattern)
		}
		if len(targets) == 0 {
			return one(resp.Array(resp.BulkString(kind), resp.Nil(), resp.Integer(c.total())))
		}
		out := make([]resp.Value, 0, len(targets))
		for _, a := range targets {
			n := c.unsubscribe(pattern, string(a))
			out = append(out, resp.Array(resp.BulkString(kind), resp.Bulk(a), resp.Integer(n)))
		}
		return out

	case "PUBSUB":
		if len(args) >= 2 && strings.EqualFold(string(args[0]), "NUMSUB") {
			items := make([]resp.Value, 0, 2*(len(args)-1))
			for _, ch := range args[1:] {
				items = append(items, resp.Bulk(ch), resp.Integer(s.subscriberCount(string(ch))))
			}
			return one(resp.Array(items...))
		}
		return one(resp.Error("ERR unknown subcommand"))

	default:
		return one(resp.Error("ERR unknown command '" + strings.ToLower(name) + "'"))
	}
}

func (c *conn) subscribe(pattern bool, name string) int64 {
	c.smu.Lock()
	defer c.smu.Unlock()
	if pattern {
		c.patterns[name] = struct{}{}
	} else {
		c.channels[name] = struct{}{}
	}
	return int64(len(c.channels) + len(c.patterns))
}

func (c *conn) unsubscribe(pattern bool, name string) int64 {
	c.smu.Lock()
	defer c.smu.Unlock()
	if pattern {
		delete(c.patterns, name)
	} else {
		delete(c.channels, name)
	}
	return int64(len(c.channels) + len(c.patterns))
}

func (c *conn) subscriptions(pattern bool) [][]byte {
	c.smu.Lock()
	defer c.smu.Unlock()
	set := c.channels
	if pattern {
		set = c.patterns
	}
	out := make([][]byte, 0, len(set))
	for name := range set {
		out = append(out, []byte(name))
	}
	return out
}

func (c *conn) total() int64 {
	c.smu.Lock()
	defer c.smu.Unlock()
	return int64(len(c.channels) + len(c.patterns))
}

func (c *conn) subscribed() bool { return c.total() > 0 }

func (c *conn) hasChannel(name string) bool {
	c.smu.Lock()
	defer c.smu.Unlock()
	_, ok := c.channels[name]
	return ok
}

// deliver pushes a published message to c if it is subscribed to the
// channel or a matching pattern. It returns the number of deliveries.
func (c *conn) deliver(channel string, payload []byte) int {
	c.smu.Lock()
	_, direct := c.channels[channel]
	var matched []string
	for p := range c.patterns {
		if ok, _ := path.Match(p, channel); ok {
			matched = append(matched, p)
		}
	}
	c.smu.Unlock()

	n := 0
	if direct {
		c.reply(resp.Array(resp.BulkString("message"), resp.BulkString(channel), resp.Bulk(payload)))
		n++
	}
	for _, p := range matched {
		c.reply(resp.Array(resp.BulkString("pmessage"), resp.BulkString(p), resp.BulkString(channel), resp.Bulk(payload)))
		n++
	}
	return n
}
