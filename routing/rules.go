// Package routing implements the rule-based transport selector and
// endpoint fan-out router described in spec.md §4.D, generalizing the
// teacher's single-handler RoutingPolicy (exact message-type match) to
// full transport-rule / endpoint-rule / fallback resolution with
// caching semantics for purely unconditional rule sets.
package routing

import "github.com/dispatchcore/dispatchcore"

// Predicate is a pure function over a message and its dispatch context,
// used to gate a routing rule. A nil Predicate always matches.
type Predicate func(msg dispatchcore.Message, mc *dispatchcore.MessageContext) bool

// TransportRule maps a message type to a transport name, optionally
// gated by a Predicate. Rules are evaluated in registration order; the
// first match wins.
type TransportRule struct {
	MessageType string
	Predicate   Predicate
	Transport   string
	Label       string
}

// EndpointRule maps a message type to a set of logical endpoint names,
// optionally gated by a Predicate. Multiple matching rules for the same
// type compose by union.
type EndpointRule struct {
	MessageType string
	Predicate   Predicate
	Endpoints   []string
	Label       string
}

// Fallback is used for endpoint resolution only when no EndpointRule
// matched for a message type.
type Fallback struct {
	Endpoint string
	Reason   string
}

func matchesType(ruleType, messageType string) bool {
	return ruleType == "" || ruleType == messageType
}

func (p Predicate) eval(msg dispatchcore.Message, mc *dispatchcore.MessageContext) bool {
	if p == nil {
		return true
	}
	return p(msg, mc)
}
