// Package acl decides which commands a client may run.
//
// Rules are compiled once from configuration and never change afterwards,
// so Check needs no locking. The first rule whose IP and credential
// predicates match a request is the only one consulted; when no rule
// matches, the command is allowed.
package acl

import (
	"crypto/subtle"
	"fmt"
	"net/netip"
	"strings"

	"github.com/samber/lo"

	"mercator-hq/webdis/pkg/command"
	"mercator-hq/webdis/pkg/config"
)

// Wildcard matches every command name in an enabled or disabled list.
const Wildcard = "*"

// DeniedError is returned when a rule refuses a command.
type DeniedError struct {
	Command string
	Rule    int
	Reason  string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("command %s denied by acl rule %d: %s", e.Command, e.Rule, e.Reason)
}

// Engine evaluates an ordered, immutable list of rules.
type Engine struct {
	rules       []rule
	hasAuthRule bool
}

type rule struct {
	index int

	prefix netip.Prefix
	hasIP  bool

	user    []byte
	pass    []byte
	hasAuth bool

	enabled    map[string]struct{}
	enabledAll bool
	hasEnabled bool

	disabled    map[string]struct{}
	disabledAll bool
}

// New compiles configuration rules. Rule order is preserved.
func New(rules []config.ACLRule) (*Engine, error) {
	e := &Engine{rules: make([]rule, 0, len(rules))}

	for i, rc := range rules {
		r := rule{index: i}

		if rc.IP != "" {
			p, err := config.ParseIPPredicate(rc.IP)
			if err != nil {
				return nil, fmt.Errorf("acl rule %d: %w", i, err)
			}
			r.prefix, r.hasIP = p, true
		}

		if rc.HTTPBasicAuth != "" {
			user, pass, ok := strings.Cut(rc.HTTPBasicAuth, ":")
			if !ok {
				return nil, fmt.Errorf("acl rule %d: http_basic_auth must be user:password", i)
			}
			r.user, r.pass, r.hasAuth = []byte(user), []byte(pass), true
			e.hasAuthRule = true
		}

		r.enabled, r.enabledAll = compileNames(rc.Enabled)
		r.hasEnabled = len(rc.Enabled) > 0
		r.disabled, r.disabledAll = compileNames(rc.Disabled)

		e.rules = append(e.rules, r)
	}

	return e, nil
}

// compileNames upper-cases names into a set and pulls out the wildcard.
func compileNames(names []string) (map[string]struct{}, bool) {
	upper := lo.Map(names, func(n string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(n))
	})
	all := lo.Contains(upper, Wildcard)
	set := lo.SliceToMap(lo.Without(upper, Wildcard), func(n string) (string, struct{}) {
		return n, struct{}{}
	})
	return set, all
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// HasAuthRules reports whether any rule is gated on basic auth.
func (e *Engine) HasAuthRules() bool {
	return e.hasAuthRule
}

// Check returns nil when cmd is allowed for the client described by rc,
// or a *DeniedError.
func (e *Engine) Check(cmd command.Command, rc command.RequestContext) error {
	name := cmd.Upper()

	for i := range e.rules {
		r := &e.rules[i]
		if !r.matches(rc) {
			continue
		}
		if reason, ok := r.decide(name); !ok {
			return &DeniedError{Command: cmd.Name, Rule: r.index, Reason: reason}
		}
		return nil
	}

	return nil
}

func (r *rule) matches(rc command.RequestContext) bool {
	if r.hasIP {
		if !rc.RemoteIP.IsValid() || !r.prefix.Contains(rc.RemoteIP.Unmap()) {
			return false
		}
	}
	if r.hasAuth {
		if !rc.HasCredentials {
			return false
		}
		userOK := subtle.ConstantTimeCompare([]byte(rc.Username), r.user) == 1
		passOK := subtle.ConstantTimeCompare([]byte(rc.Password), r.pass) == 1
		if !userOK || !passOK {
			return false
		}
	}
	return true
}

// decide applies a matched rule. Explicit names take precedence over the
// wildcard, so {"disabled": ["*"], "enabled": ["GET"]} allows only GET.
func (r *rule) decide(name string) (string, bool) {
	if _, ok := r.disabled[name]; ok {
		return "command is disabled", false
	}
	if _, ok := r.enabled[name]; ok {
		return "", true
	}
	if r.disabledAll {
		return "all commands are disabled", false
	}
	if r.hasEnabled && !r.enabledAll {
		return "command is not enabled", false
	}
	return "", true
}
