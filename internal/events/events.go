package events

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"leadhunt-engine/internal/domain"
)

// TypeHeartbeat keeps idle streams open through proxies.
const TypeHeartbeat = "heartbeat"

// Event is one frame on the /events stream.
type Event struct {
	ID        string               `json:"id"`
	Type      string               `json:"type"`
	At        time.Time            `json:"at"`
	RequestID string               `json:"request_id,omitempty"`
	Lead      *domain.Lead         `json:"lead,omitempty"`
	Change    *domain.StatusChange `json:"change,omitempty"`
	Message   string               `json:"message,omitempty"`
}

func FromLeadEvent(ev domain.LeadEvent) Event {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return Event{
		ID:      uuid.NewString(),
		Type:    ev.Type,
		At:      at.UTC(),
		Lead:    ev.Lead,
		Change:  ev.Change,
		Message: ev.Message,
	}
}

func Heartbeat(reqID string) Event {
	return Event{ID: uuid.NewString(), Type: TypeHeartbeat, At: time.Now().UTC(), RequestID: reqID}
}

// WriteTo writes e as a text/event-stream frame carrying its id and type.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	n, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return int64(n), err
}
