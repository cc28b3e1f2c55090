package application

import (
	"strings"
	"sync"

	alerts "agrowatch/internal/alerts/domain"
)

type policy struct {
	direction Direction
	highKind  string
	lowKind   string
}

// Classifier maps sensor-type names to alarm policies. Rules are
// compiled once; the per-type lookup is memoized because the same
// handful of type names recurs on every tick.
type Classifier struct {
	rules    []compiledRule
	lowKinds map[string]struct{}

	mu    sync.RWMutex
	cache map[string]*policy
}

type compiledRule struct {
	tokens []string
	policy policy
}

// NewClassifier compiles a rule set.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compiled := make([]compiledRule, 0, len(cfg.Rules))
	lowKinds := make(map[string]struct{})
	for _, rule := range cfg.Rules {
		tokens := make([]string, 0, len(rule.Match))
		for _, token := range rule.Match {
			tokens = append(tokens, strings.ToLower(token))
		}
		highKind := rule.HighKind
		if highKind == "" {
			highKind = alerts.KindGeneral
		}
		if rule.Direction != DirectionHigh && rule.LowKind != "" {
			lowKinds[rule.LowKind] = struct{}{}
		}
		compiled = append(compiled, compiledRule{
			tokens: tokens,
			policy: policy{direction: rule.Direction, highKind: highKind, lowKind: rule.LowKind},
		})
	}
	return &Classifier{rules: compiled, lowKinds: lowKinds, cache: make(map[string]*policy)}, nil
}

// ResolvesLow reports whether alerts of a kind clear on the low side
// (value >= min). Any kind a rule declares as its low_kind joins the
// built-in low family, so custom kinds resolve in the direction their
// rule watches.
func (c *Classifier) ResolvesLow(kind string) bool {
	if _, ok := c.lowKinds[kind]; ok {
		return true
	}
	return alerts.ResolvesLow(kind)
}

// Classify reports the alert kind for a reading outside [min,max].
// It returns false when the value is in band, when the sensor type
// matches no rule, or when the rule only watches the other side.
func (c *Classifier) Classify(sensorType string, value, min, max float64) (string, bool) {
	p := c.policyFor(sensorType)
	if p == nil {
		return "", false
	}
	switch {
	case value > max && p.direction != DirectionLow:
		return p.highKind, true
	case value < min && p.direction != DirectionHigh:
		return p.lowKind, true
	default:
		return "", false
	}
}

// policyFor resolves a sensor type to its policy, caching misses too
// so unmatched types cost one scan ever.
func (c *Classifier) policyFor(sensorType string) *policy {
	key := strings.ToLower(sensorType)

	c.mu.RLock()
	cached, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	var found *policy
	for i := range c.rules {
		for _, token := range c.rules[i].tokens {
			if strings.Contains(key, token) {
				found = &c.rules[i].policy
				break
			}
		}
		if found != nil {
			break
		}
	}

	c.mu.Lock()
	c.cache[key] = found
	c.mu.Unlock()
	return found
}
