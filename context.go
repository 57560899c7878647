package dispatchcore

import "time"

// MessageContext is the mutable per-invocation record threaded through a
// single dispatch. It is distinct from the immutable Message envelope and
// belongs to exactly one dispatch: it must never be shared across
// concurrent dispatches.
//
// Items holds transient middleware-to-middleware hand-offs (e.g. a raw
// auth token extracted by a transport adapter for the authentication
// middleware to consume, or the "MessageDirection" flag read by signing).
// Properties holds caller-visible derived state populated for the
// handler (e.g. the authenticated Principal, UserId, Roles).
//
// Middleware MUST NOT delete keys written by an earlier stage.
type MessageContext struct {
	MessageID            string
	CorrelationID         string
	ReceivedTimestampUTC  time.Time
	TenantID              string

	Items      map[string]any
	Properties map[string]any
}

// NewMessageContext builds a MessageContext for a freshly received
// Message, stamping ReceivedTimestampUTC to now.
func NewMessageContext(msg Message) *MessageContext {
	return &MessageContext{
		MessageID:            msg.ID(),
		CorrelationID:         msg.CorrelationID(),
		ReceivedTimestampUTC:  time.Now().UTC(),
		Items:                 make(map[string]any),
		Properties:            make(map[string]any),
	}
}

// ItemString returns ctx.Items[key] as a string, or "" if absent or of a
// different type.
func (c *MessageContext) ItemString(key string) string {
	if c == nil {
		return ""
	}
	v, _ := c.Items[key].(string)
	return v
}

// PropertyString returns ctx.Properties[key] as a string, or "" if absent
// or of a different type.
func (c *MessageContext) PropertyString(key string) string {
	if c == nil {
		return ""
	}
	v, _ := c.Properties[key].(string)
	return v
}

// Well-known context item/property keys used across the built-in
// middleware set. Application code and transports may define additional
// keys freely; these are the ones the core middleware reads or writes.
const (
	// ItemTokenContextKey is the default Items key authentication reads a
	// raw bearer token from, bypassing header extraction entirely.
	ItemTokenContextKey = "AuthToken"
	// ItemMessageDirection distinguishes outbound (signing) from inbound
	// (verification) dispatch for the signing middleware.
	ItemMessageDirection = "MessageDirection"
	// ItemMessageSignature carries an inbound signature for verification.
	ItemMessageSignature = "MessageSignature"
	// ItemTenantID is the primary rate-limit bucket key.
	ItemTenantID = "TenantId"

	// DirectionOutgoing marks a dispatch producing a message to be sent.
	DirectionOutgoing = "Outgoing"
	// DirectionIncoming marks a dispatch processing a received message.
	DirectionIncoming = "Incoming"

	// PropertyPrincipal holds the verified principal object after
	// successful authentication.
	PropertyPrincipal = "Principal"
	// PropertyUserID holds the subject/nameIdentifier claim.
	PropertyUserID = "UserId"
	// PropertyUserName holds the name claim.
	PropertyUserName = "UserName"
	// PropertyEmail holds the email claim.
	PropertyEmail = "Email"
	// PropertyTenantID holds the tenant_id claim (see DESIGN.md: the
	// unmapped "tenant_id" claim, not the short "tid" claim name).
	PropertyTenantID = "TenantId"
	// PropertyRoles holds the list of role claims.
	PropertyRoles = "Roles"
	// PropertyAuthenticatedAt records when authentication succeeded.
	PropertyAuthenticatedAt = "AuthenticatedAt"
	// PropertyAuthenticationMethod records how the principal was verified.
	PropertyAuthenticationMethod = "AuthenticationMethod"
	// PropertyMessageSignature holds a freshly computed outbound signature.
	PropertyMessageSignature = "MessageSignature"
	// PropertySignatureAlgorithm records the algorithm used to sign.
	PropertySignatureAlgorithm = "SignatureAlgorithm"
	// PropertySignedAt records when signing occurred.
	PropertySignedAt = "SignedAt"

	// ItemProcessingAttempts tracks how many times this message has been
	// handed to the pipeline, maintained by the error-handling middleware.
	ItemProcessingAttempts = "ProcessingAttempts"
	// ItemFirstAttemptAt records the UTC time of the first attempt.
	ItemFirstAttemptAt = "FirstAttemptTime"
	// ItemSourceQueue records the originating transport/queue name, used
	// to populate dead-letter entries.
	ItemSourceQueue = "SourceQueue"
)
