package dispatchcore

import "context"

// Stage is the canonical, ordered grouping middleware is composed by.
// Within a stage, registration order is preserved; across stages this
// order is always followed regardless of registration order.
type Stage int

const (
	StageRateLimiting Stage = iota
	StageAuthentication
	StageAuthorization
	StageValidation
	StageTelemetry
	StageErrorHandling
	StageRouting
	StageCustom
	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageRateLimiting:
		return "RateLimiting"
	case StageAuthentication:
		return "Authentication"
	case StageAuthorization:
		return "Authorization"
	case StageValidation:
		return "Validation"
	case StageTelemetry:
		return "Telemetry"
	case StageErrorHandling:
		return "ErrorHandling"
	case StageRouting:
		return "Routing"
	case StageCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// HandlerFunc is the function signature composed by middleware: given a
// message and its per-dispatch context, produce a Result (or an error for
// programmer-error conditions that must propagate rather than become a
// typed Result).
type HandlerFunc func(ctx context.Context, msg Message, mc *MessageContext) (Result, error)

// Next is the delegate a Middleware invokes to continue the chain. A
// Middleware MUST call Next at most once and MUST NOT call it after
// returning a short-circuiting Result.
type Next = HandlerFunc

// Middleware is one stage of the dispatch pipeline. Stage declares where
// it is grouped; ApplicableMessageKinds gates which Message.Kind values
// it runs for. Invoke receives the remainder of the chain as next.
type Middleware interface {
	Stage() Stage
	ApplicableMessageKinds() Kind
	Invoke(ctx context.Context, msg Message, mc *MessageContext, next Next) (Result, error)
}

// MiddlewareFunc adapts a plain function plus stage/kind metadata into a
// Middleware, mirroring the common case of stateless middleware.
type MiddlewareFunc struct {
	StageValue Stage
	KindMask   Kind
	Fn         func(ctx context.Context, msg Message, mc *MessageContext, next Next) (Result, error)
}

func (m MiddlewareFunc) Stage() Stage                  { return m.StageValue }
func (m MiddlewareFunc) ApplicableMessageKinds() Kind   { return m.KindMask }
func (m MiddlewareFunc) Invoke(ctx context.Context, msg Message, mc *MessageContext, next Next) (Result, error) {
	return m.Fn(ctx, msg, mc, next)
}

// Pipeline holds a registered, order-preserving middleware set and
// composes it into a single delegate per dispatch. The chain is rebuilt
// for every dispatch (not cached) because applicability varies by the
// message's Kind — see spec.md §4.C: "not cacheable because middleware
// may vary by kind".
type Pipeline struct {
	byStage [stageCount][]Middleware
}

// NewPipeline returns an empty Pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Use registers one or more middleware, preserving registration order
// within each middleware's declared Stage.
func (p *Pipeline) Use(mw ...Middleware) {
	for _, m := range mw {
		p.byStage[m.Stage()] = append(p.byStage[m.Stage()], m)
	}
}

// Build composes the registered middleware applicable to kind, in
// canonical stage order, right-to-left around terminal. Implementations
// that register no middleware at all take the fast path of returning
// terminal unchanged, matching spec.md §4.C's allowance for a
// type-specialized fast path with identical observable behavior.
func (p *Pipeline) Build(kind Kind, terminal HandlerFunc) HandlerFunc {
	chain := make([]Middleware, 0, 8)
	for stage := Stage(0); stage < stageCount; stage++ {
		for _, m := range p.byStage[stage] {
			if m.ApplicableMessageKinds().Has(kind) {
				chain = append(chain, m)
			}
		}
	}
	if len(chain) == 0 {
		return terminal
	}
	next := terminal
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		innerNext := next
		next = func(ctx context.Context, msg Message, mc *MessageContext) (Result, error) {
			return mw.Invoke(ctx, msg, mc, innerNext)
		}
	}
	return next
}
