package domain

import "time"

const (
	EventLeadCreated   = "lead_created"
	EventLeadStatus    = "lead_status"
	EventLeadSaved     = "lead_saved"
	EventLeadResponse  = "lead_response"
	EventIngestStarted = "ingest_started"
	EventIngestDone    = "ingest_done"
)

// LeadEvent is what downstream collaborators (SSE clients, Kafka) receive.
type LeadEvent struct {
	Type    string        `json:"type"`
	Lead    *Lead         `json:"lead,omitempty"`
	Change  *StatusChange `json:"change,omitempty"`
	Message string        `json:"message,omitempty"`
	At      time.Time     `json:"at"`
}
