package ratelimit

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

type Rule struct {
	Method  string
	Route   string
	Limit   int
	Window  time.Duration
	Message string
}

type ruleEntry struct {
	Method  string `yaml:"method"`
	Route   string `yaml:"route"`
	Limit   int    `yaml:"limit"`
	Window  string `yaml:"window"`
	Message string `yaml:"message"`
}

type policyFile struct {
	DefaultMessage string      `yaml:"default_message"`
	BotMessage     string      `yaml:"bot_message"`
	Rules          []ruleEntry `yaml:"rules"`
	Bots           []string    `yaml:"bots"`
}

// Policy decides the limit that applies to a method and route and recognises
// crawler user agents.
type Policy struct {
	BotMessage string
	rules      []Rule
	bots       []*regexp.Regexp
}

// LoadPolicy reads a policy file, or the built-in policy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return ParsePolicy(defaultPolicy)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit policy: %w", err)
	}
	return ParsePolicy(data)
}

func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(err)
	}
	return p
}

func ParsePolicy(data []byte) (*Policy, error) {
	var doc policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit policy: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rate limit policy has no rules")
	}

	p := &Policy{BotMessage: doc.BotMessage}
	if p.BotMessage == "" {
		p.BotMessage = "Do not allow bot requests"
	}

	for i, rs := range doc.Rules {
		window, err := time.ParseDuration(rs.Window)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid window %q: %w", i, rs.Window, err)
		}
		if rs.Limit <= 0 || window <= 0 {
			return nil, fmt.Errorf("rule %d: limit and window must be positive", i)
		}

		message := rs.Message
		if message == "" {
			message = doc.DefaultMessage
		}

		method := strings.ToUpper(rs.Method)
		if method == "" {
			method = "*"
		}

		p.rules = append(p.rules, Rule{
			Method:  method,
			Route:   rs.Route,
			Limit:   rs.Limit,
			Window:  window,
			Message: message,
		})
	}

	for _, pattern := range doc.Bots {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid bot pattern %q: %w", pattern, err)
		}
		p.bots = append(p.bots, re)
	}

	return p, nil
}

// Resolve returns the first rule matching method and route. ok is false when
// no rule applies.
func (p *Policy) Resolve(method, route string) (Rule, bool) {
	method = strings.ToUpper(method)
	for _, r := range p.rules {
		if r.Method != "*" && r.Method != method {
			continue
		}
		if r.Route != "" && r.Route != route {
			continue
		}
		return r, true
	}
	return Rule{}, false
}

func (p *Policy) IsBot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	for _, re := range p.bots {
		if re.MatchString(userAgent) {
			return true
		}
	}
	return false
}
