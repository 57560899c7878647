package audit

import (
	"strings"
	"time"

	"github.com/dispatchcore/dispatchcore"
	"github.com/google/uuid"
)

// well-known MessageContext.Items keys the audit pipeline reads out of
// the dispatch context when building a SecurityEvent.
const (
	itemUserMessageID   = "User:MessageId"
	itemClientIP        = "Client:IP"
	itemClientUserAgent = "Client:UserAgent"
	itemMessageType     = "Message:Type"
)

var additionalDataPrefixes = []string{"Security:", "Auth:", "Validation:"}

func buildEvent(eventType EventType, description string, severity Severity, mc *dispatchcore.MessageContext) SecurityEvent {
	ev := SecurityEvent{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		Severity:       severity,
		Description:    description,
		AdditionalData: make(map[string]any),
	}
	if mc == nil {
		return ev
	}
	if _, err := uuid.Parse(mc.CorrelationID); err == nil {
		ev.CorrelationID = mc.CorrelationID
	}
	if v, ok := mc.Items[itemUserMessageID].(string); ok {
		ev.UserID = v
	}
	if v, ok := mc.Items[itemClientIP].(string); ok {
		ev.SourceIP = v
	}
	if v, ok := mc.Items[itemClientUserAgent].(string); ok {
		ev.UserAgent = v
	}
	if v, ok := mc.Items[itemMessageType].(string); ok {
		ev.MessageType = v
	}
	for key, val := range mc.Items {
		for _, prefix := range additionalDataPrefixes {
			if strings.HasPrefix(key, prefix) {
				ev.AdditionalData[key] = val
				break
			}
		}
	}
	return ev
}
