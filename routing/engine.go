package routing

import (
	"strings"
	"sync"

	"github.com/dispatchcore/dispatchcore"
)

// RoutingDecision is the outcome of resolving both transport and
// endpoints for a message. A Failure decision carries a reason (spec.md
// §3's "Failure{reason}" variant): Ok is false and Transport, Endpoints
// and MatchedRuleLabels are left empty.
type RoutingDecision struct {
	Transport          string
	Endpoints          []string
	MatchedRuleLabels  []string
	Ok                 bool
	Reason             string
}

// RouteDescriptor describes one routable destination for introspection
// via GetAvailableRoutes.
type RouteDescriptor struct {
	RouteType string // "transport" or "endpoint"
	Name      string
	Priority  int
}

// MaxPriority is the priority assigned to the fallback endpoint route.
const MaxPriority = int(^uint(0) >> 1)

// Engine is an immutable, compiled routing rule set with caches for pure
// (unconditional-only) resolutions. Build an Engine via Builder.
type Engine struct {
	transportRules   []TransportRule
	endpointRules    []EndpointRule
	defaultTransport string
	fallback         *Fallback

	mu              sync.RWMutex
	transportCache  map[string]string
	endpointCache   map[string][]string
}

func newEngine(transportRules []TransportRule, endpointRules []EndpointRule, defaultTransport string, fallback *Fallback) *Engine {
	return &Engine{
		transportRules:   transportRules,
		endpointRules:    endpointRules,
		defaultTransport: defaultTransport,
		fallback:         fallback,
		transportCache:   make(map[string]string),
		endpointCache:    make(map[string][]string),
	}
}

// SelectTransport implements spec.md §4.D's transport selector: the
// first transport rule matching the message type (and, if present, its
// predicate) wins; absent a match, DefaultTransport is returned. Results
// are memoized per message type only when no conditional rule was
// evaluated while resolving that type — a conditional rule that was
// skipped this time may match next time, so its type can never be
// cached.
func (e *Engine) SelectTransport(msg dispatchcore.Message, mc *dispatchcore.MessageContext) string {
	msgType := msg.Type()

	e.mu.RLock()
	cached, ok := e.transportCache[msgType]
	e.mu.RUnlock()
	if ok {
		return cached
	}

	sawConditional := false

	for _, rule := range e.transportRules {
		if !matchesType(rule.MessageType, msgType) {
			continue
		}
		if rule.Predicate != nil {
			sawConditional = true
		}
		if !rule.Predicate.eval(msg, mc) {
			continue
		}
		if !sawConditional {
			e.mu.Lock()
			e.transportCache[msgType] = rule.Transport
			e.mu.Unlock()
		}
		return rule.Transport
	}

	if !sawConditional {
		e.mu.Lock()
		e.transportCache[msgType] = e.defaultTransport
		e.mu.Unlock()
	}
	return e.defaultTransport
}

// RouteToEndpoints implements spec.md §4.D's endpoint router: the union
// of endpoints from every matching rule, deduplicated case-insensitively
// preserving first-seen order and casing. If the result is empty and a
// Fallback is configured, returns a single-element slice with the
// fallback endpoint. Results are memoized per message type only when no
// conditional rule was evaluated while resolving that type.
func (e *Engine) RouteToEndpoints(msg dispatchcore.Message, mc *dispatchcore.MessageContext) []string {
	msgType := msg.Type()

	e.mu.RLock()
	cached, ok := e.endpointCache[msgType]
	e.mu.RUnlock()
	if ok {
		return cached
	}

	var ordered []string
	seen := make(map[string]struct{})
	sawConditional := false

	for _, rule := range e.endpointRules {
		if !matchesType(rule.MessageType, msgType) {
			continue
		}
		if rule.Predicate != nil {
			sawConditional = true
		}
		if !rule.Predicate.eval(msg, mc) {
			continue
		}
		for _, ep := range rule.Endpoints {
			key := strings.ToLower(ep)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			ordered = append(ordered, ep)
		}
	}

	result := ordered
	if len(result) == 0 && e.fallback != nil {
		result = []string{e.fallback.Endpoint}
	}

	if !sawConditional {
		e.mu.Lock()
		e.endpointCache[msgType] = result
		e.mu.Unlock()
	}
	return result
}

// CanRouteTo reports whether destination is reachable for msg: either it
// equals the selected transport (case-insensitive) or it appears among
// the resolved endpoints (case-insensitive).
func (e *Engine) CanRouteTo(msg dispatchcore.Message, mc *dispatchcore.MessageContext, destination string) bool {
	if strings.EqualFold(e.SelectTransport(msg, mc), destination) {
		return true
	}
	for _, ep := range e.RouteToEndpoints(msg, mc) {
		if strings.EqualFold(ep, destination) {
			return true
		}
	}
	return false
}

// GetAvailableRoutes returns every transport and endpoint route
// registered for msg's type, with priority assigned per matching rule in
// registration order (all endpoints of one rule share a priority). The
// fallback endpoint, if used, is given MaxPriority.
func (e *Engine) GetAvailableRoutes(msg dispatchcore.Message, mc *dispatchcore.MessageContext) []RouteDescriptor {
	msgType := msg.Type()
	var routes []RouteDescriptor
	priority := 0

	for _, rule := range e.transportRules {
		if !matchesType(rule.MessageType, msgType) {
			continue
		}
		if !rule.Predicate.eval(msg, mc) {
			continue
		}
		routes = append(routes, RouteDescriptor{RouteType: "transport", Name: rule.Transport, Priority: priority})
		priority++
	}

	anyEndpoint := false
	for _, rule := range e.endpointRules {
		if !matchesType(rule.MessageType, msgType) {
			continue
		}
		if !rule.Predicate.eval(msg, mc) {
			continue
		}
		for _, ep := range rule.Endpoints {
			routes = append(routes, RouteDescriptor{RouteType: "endpoint", Name: ep, Priority: priority})
			anyEndpoint = true
		}
		priority++
	}

	if !anyEndpoint && e.fallback != nil {
		routes = append(routes, RouteDescriptor{RouteType: "endpoint", Name: e.fallback.Endpoint, Priority: MaxPriority})
	}
	return routes
}

// DispatchRouter composes SelectTransport and RouteToEndpoints into a
// single RoutingDecision, matching spec.md §4.D's "Dispatch router".
func (e *Engine) DispatchRouter(msg dispatchcore.Message, mc *dispatchcore.MessageContext) RoutingDecision {
	transport := e.SelectTransport(msg, mc)
	if transport == "" {
		return RoutingDecision{Ok: false, Reason: "no transport"}
	}
	endpoints := e.RouteToEndpoints(msg, mc)

	labels := make([]string, 0, 1+len(endpoints))
	labels = append(labels, "transport:"+transport)
	for _, ep := range endpoints {
		labels = append(labels, "endpoint:"+ep)
	}

	return RoutingDecision{
		Transport:         transport,
		Endpoints:         endpoints,
		MatchedRuleLabels: labels,
		Ok:                true,
	}
}
