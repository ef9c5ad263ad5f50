package audit

import (
	"context"
	"strings"
	"time"

	"metergate.org/internal/ids"
	"metergate.org/internal/obs"
)

// Outcome values for access-control decisions.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// Severity levels carried on emitted events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Event is the structured record emitted for every authentication and
// authorization decision. The core emits events; it never writes audit
// storage itself.
type Event struct {
	EventType string         `json:"event_type"`
	ActorID   string         `json:"actor_id,omitempty"`
	Resource  string         `json:"resource"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Severity  string         `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
}

// Emitter delivers events to the external audit collaborator.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// LogEmitter writes one JSON line per event through the shared logger.
type LogEmitter struct{}

// NewLogEmitter returns an emitter backed by the process logger.
func NewLogEmitter() *LogEmitter { return &LogEmitter{} }

func (e *LogEmitter) Emit(ctx context.Context, ev Event) {
	if strings.TrimSpace(ev.EventType) == "" {
		return
	}
	entry := map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"type":       "audit",
		"audit_id":   ids.New(),
		"event_type": ev.EventType,
		"resource":   ev.Resource,
		"action":     ev.Action,
		"outcome":    ev.Outcome,
		"severity":   ev.Severity,
	}
	if ev.ActorID != "" {
		entry["actor_id"] = ev.ActorID
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if addr := RemoteAddrFromContext(ctx); addr != "" {
		entry["remote_addr"] = addr
	}
	if len(ev.Details) > 0 {
		details := make(map[string]any, len(ev.Details))
		for k, v := range ev.Details {
			details[k] = v
		}
		entry["details"] = details
	}
	obs.LogEntry(entry)
}

// NopEmitter discards events. Useful in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, ev Event) {}
