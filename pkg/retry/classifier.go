package retry

import (
	"errors"
	"sync"
)

// MatchIs builds a predicate matching errors.Is against target
func MatchIs(target error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// classifierRule pairs an error predicate with the policy to use
type classifierRule struct {
	match  func(error) bool
	policy Policy
}

// classifierBinding is the child resolved for one episode
type classifierBinding struct {
	policy Policy
	ctx    Context
}

const attrClassifierBinding = "classifier.binding"
const attrClassifierRules = "classifier.rules"

// ErrorClassifierPolicy delegates each episode to a child policy selected by
// the first registered failure. The rule set is snapshotted at open, so
// changes to the classifier never affect in-flight episodes, and the chosen
// child is cached on the context rather than re-resolved per attempt.
type ErrorClassifierPolicy struct {
	mu       sync.RWMutex
	rules    []classifierRule
	fallback Policy
}

// NewErrorClassifier creates a classifier policy with a fallback child used
// when no rule matches
func NewErrorClassifier(fallback Policy) *ErrorClassifierPolicy {
	if fallback == nil {
		fallback = NewNever()
	}
	return &ErrorClassifierPolicy{fallback: fallback}
}

// When routes failures accepted by match to the given child policy. Rules
// are consulted in registration order.
func (p *ErrorClassifierPolicy) When(match func(error) bool, policy Policy) *ErrorClassifierPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules = append(p.rules, classifierRule{match: match, policy: policy})
	return p
}

// WhenIs routes failures matching errors.Is(err, target) to policy
func (p *ErrorClassifierPolicy) WhenIs(target error, policy Policy) *ErrorClassifierPolicy {
	return p.When(MatchIs(target), policy)
}

// Open begins a new episode with a snapshot of the current rule set
func (p *ErrorClassifierPolicy) Open(parent Context) Context {
	p.mu.RLock()
	snapshot := make([]classifierRule, len(p.rules), len(p.rules)+1)
	copy(snapshot, p.rules)
	snapshot = append(snapshot, classifierRule{
		match:  func(error) bool { return true },
		policy: p.fallback,
	})
	p.mu.RUnlock()

	rc := NewBaseContext(parent)
	rc.SetAttribute(attrClassifierRules, snapshot)
	return rc
}

// CanRetry defers to the resolved child, allowing the first attempt before
// any failure has selected one
func (p *ErrorClassifierPolicy) CanRetry(rc Context) bool {
	if b := binding(rc); b != nil {
		return b.policy.CanRetry(b.ctx)
	}
	return true
}

// RegisterError resolves the child on the first failure and records the
// failure on both the classifier context and the child context
func (p *ErrorClassifierPolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)

	b := binding(rc)
	if b == nil {
		b = p.resolve(rc, err)
		rc.SetAttribute(attrClassifierBinding, b)
	}
	b.policy.RegisterError(b.ctx, err)
}

// Close retires the episode and the resolved child episode
func (p *ErrorClassifierPolicy) Close(rc Context) {
	if b := binding(rc); b != nil {
		b.policy.Close(b.ctx)
	}
}

func (p *ErrorClassifierPolicy) resolve(rc Context, err error) *classifierBinding {
	var rules []classifierRule
	if v, ok := rc.Attribute(attrClassifierRules); ok {
		rules, _ = v.([]classifierRule)
	}

	for _, rule := range rules {
		if rule.match(err) {
			return &classifierBinding{
				policy: rule.policy,
				ctx:    rule.policy.Open(rc.Parent()),
			}
		}
	}

	p.mu.RLock()
	fallback := p.fallback
	p.mu.RUnlock()
	return &classifierBinding{policy: fallback, ctx: fallback.Open(rc.Parent())}
}

func binding(rc Context) *classifierBinding {
	v, ok := rc.Attribute(attrClassifierBinding)
	if !ok {
		return nil
	}
	b, _ := v.(*classifierBinding)
	return b
}
