package routing

// Builder accumulates transport rules, endpoint rules, and a fallback,
// then compiles an immutable Engine snapshot via Build. Chainable
// methods return the receiver so rules can be declared fluently, per
// spec.md §9's "fluent builder ... compiles to a snapshot" redesign
// note.
type Builder struct {
	transportRules   []*TransportRule
	endpointRules    []*EndpointRule
	defaultTransport string
	fallback         *Fallback
}

// NewBuilder returns a Builder with the spec-mandated default transport
// "local".
func NewBuilder() *Builder {
	return &Builder{defaultTransport: "local"}
}

// DefaultTransport overrides the transport returned when no transport
// rule matches.
func (b *Builder) DefaultTransport(name string) *Builder {
	b.defaultTransport = name
	return b
}

// Fallback sets the endpoint used when no endpoint rule matches for a
// message type.
func (b *Builder) Fallback(endpoint, reason string) *Builder {
	b.fallback = &Fallback{Endpoint: endpoint, Reason: reason}
	return b
}

// Transport begins a transport rule for messageType.
func (b *Builder) Transport(messageType string) *TransportRuleBuilder {
	r := &TransportRule{MessageType: messageType}
	b.transportRules = append(b.transportRules, r)
	return &TransportRuleBuilder{rule: r}
}

// Route begins an endpoint rule for messageType, matching the S5 example
// in spec.md: Route(messageType).To(endpoint).When(predicate).AlsoTo(endpoint).
func (b *Builder) Route(messageType string) *EndpointRuleBuilder {
	r := &EndpointRule{MessageType: messageType}
	b.endpointRules = append(b.endpointRules, r)
	return &EndpointRuleBuilder{rule: r}
}

// Build compiles the accumulated rules into an immutable Engine.
func (b *Builder) Build() *Engine {
	transportRules := make([]TransportRule, len(b.transportRules))
	for i, r := range b.transportRules {
		transportRules[i] = *r
	}
	endpointRules := make([]EndpointRule, len(b.endpointRules))
	for i, r := range b.endpointRules {
		endpointRules[i] = *r
	}
	return newEngine(transportRules, endpointRules, b.defaultTransport, b.fallback)
}

// TransportRuleBuilder configures a single TransportRule in place.
type TransportRuleBuilder struct{ rule *TransportRule }

// To sets the transport name selected when this rule matches.
func (t *TransportRuleBuilder) To(transport string) *TransportRuleBuilder {
	t.rule.Transport = transport
	return t
}

// When attaches a predicate; nil (the default) makes the rule
// unconditional.
func (t *TransportRuleBuilder) When(p Predicate) *TransportRuleBuilder {
	t.rule.Predicate = p
	return t
}

// Label overrides the rule label used in RoutingDecision.MatchedRuleLabels.
func (t *TransportRuleBuilder) Label(label string) *TransportRuleBuilder {
	t.rule.Label = label
	return t
}

// EndpointRuleBuilder configures a single EndpointRule in place.
type EndpointRuleBuilder struct{ rule *EndpointRule }

// To adds an endpoint to the rule's endpoint set.
func (e *EndpointRuleBuilder) To(endpoint string) *EndpointRuleBuilder {
	e.rule.Endpoints = append(e.rule.Endpoints, endpoint)
	return e
}

// AlsoTo is an alias for To, used for readability when chaining
// additional endpoints after When.
func (e *EndpointRuleBuilder) AlsoTo(endpoint string) *EndpointRuleBuilder {
	return e.To(endpoint)
}

// When attaches a predicate; nil (the default) makes the rule
// unconditional.
func (e *EndpointRuleBuilder) When(p Predicate) *EndpointRuleBuilder {
	e.rule.Predicate = p
	return e
}

// Label overrides the rule label used in RoutingDecision.MatchedRuleLabels.
func (e *EndpointRuleBuilder) Label(label string) *EndpointRuleBuilder {
	e.rule.Label = label
	return e
}
