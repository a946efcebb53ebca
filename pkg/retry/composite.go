package retry

// CompositePolicy fans episode events out to child policies. CanRetry is the
// conjunction of the children's votes, or the disjunction when optimistic:
// pessimistic composition lets "stop after N attempts" combine with "never
// retry on this error" independently.
type CompositePolicy struct {
	policies   []Policy
	optimistic bool
}

// compositeContext carries one child context per child policy while sharing
// a single retry count
type compositeContext struct {
	*BaseContext
	contexts []Context
}

// NewComposite creates a pessimistic composite: all children must allow the
// next attempt
func NewComposite(policies ...Policy) *CompositePolicy {
	return &CompositePolicy{policies: policies}
}

// NewCompositeOptimistic creates an optimistic composite: any child allowing
// the next attempt suffices
func NewCompositeOptimistic(policies ...Policy) *CompositePolicy {
	return &CompositePolicy{policies: policies, optimistic: true}
}

// Open begins an episode on every child
func (p *CompositePolicy) Open(parent Context) Context {
	contexts := make([]Context, len(p.policies))
	for i, child := range p.policies {
		contexts[i] = child.Open(parent)
	}
	return &compositeContext{
		BaseContext: NewBaseContext(parent),
		contexts:    contexts,
	}
}

// CanRetry combines the children's votes
func (p *CompositePolicy) CanRetry(rc Context) bool {
	cc, ok := rc.(*compositeContext)
	if !ok {
		return false
	}

	if p.optimistic {
		for i, child := range p.policies {
			if child.CanRetry(cc.contexts[i]) {
				return true
			}
		}
		return len(p.policies) == 0
	}

	for i, child := range p.policies {
		if !child.CanRetry(cc.contexts[i]) {
			return false
		}
	}
	return true
}

// RegisterError records the failure on the shared count and on every child
func (p *CompositePolicy) RegisterError(rc Context, err error) {
	registerOn(rc, err)
	if cc, ok := rc.(*compositeContext); ok {
		for i, child := range p.policies {
			child.RegisterError(cc.contexts[i], err)
		}
	}
}

// Close retires every child episode
func (p *CompositePolicy) Close(rc Context) {
	if cc, ok := rc.(*compositeContext); ok {
		for i, child := range p.policies {
			child.Close(cc.contexts[i])
		}
	}
}
