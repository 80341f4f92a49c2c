package model

// AuditEntry is one recorded auth event.
type AuditEntry struct {
	Type       string `json:"type"`
	ActorID    string `json:"actorId,omitempty"`
	OccurredAt string `json:"occurredAt"`
	Payload    any    `json:"payload,omitempty"`
}

type AuditQuery struct {
	Type    string
	ActorID string
	From    string
	To      string
	Page    int
	Limit   int
}
