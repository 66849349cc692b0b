package gateway

import (
	"encoding/json"
	"strings"
)

// RawMessage is one undecoded message record from the gateway. The
// provider has changed both its envelope and its field names across
// versions, so every field is read through an ordered candidate list,
// first present non-empty string wins.
type RawMessage map[string]any

var (
	senderKeys    = []string{"from", "sender"}
	recipientKeys = []string{"to", "recipient"}
	bodyKeys      = []string{"message", "text", "body"}
	timestampKeys = []string{"timestamp", "created_at"}
	idKeys        = []string{"id", "message_id", "_id", "uuid"}
	directionKeys = []string{"direction", "type"}

	// keys whose presence marks a bare object as a single message
	messageMarkerKeys = []string{"from", "to", "message", "text", "body", "timestamp", "created_at"}

	// envelope keys tried in order when the payload is a wrapper object
	envelopeKeys = []string{"messages", "data", "results", "items"}
)

func (m RawMessage) firstString(keys []string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func (m RawMessage) Sender() string    { return m.firstString(senderKeys) }
func (m RawMessage) Recipient() string { return m.firstString(recipientKeys) }
func (m RawMessage) Body() string      { return m.firstString(bodyKeys) }
func (m RawMessage) Timestamp() string { return m.firstString(timestampKeys) }

// ExternalID returns the gateway-assigned id, or "" when the gateway
// never assigned one.
func (m RawMessage) ExternalID() string { return m.firstString(idKeys) }

// Inbound reports whether the record looks like a received message.
// A record with no direction field at all is treated as received,
// which is what the provider's received-only shapes look like.
func (m RawMessage) Inbound() bool {
	dir := strings.ToLower(m.firstString(directionKeys))
	if dir == "" {
		return true
	}
	return strings.Contains(dir, "recv") || dir == "inbound" || dir == "received"
}

// Parse decodes a gateway response body into its message records,
// tolerating the envelope shapes the provider has used: a bare list,
// a wrapper object keyed by messages/data/results/items, or a single
// message object.
func Parse(body []byte) ([]RawMessage, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return extract(data), nil
}

func extract(data any) []RawMessage {
	switch v := data.(type) {
	case []any:
		return collect(v)
	case map[string]any:
		for _, key := range envelopeKeys {
			if inner, ok := v[key].([]any); ok {
				return collect(inner)
			}
		}
		for _, key := range messageMarkerKeys {
			if _, ok := v[key]; ok {
				return []RawMessage{RawMessage(v)}
			}
		}
	}
	return nil
}

func collect(items []any) []RawMessage {
	var out []RawMessage
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, RawMessage(m))
		}
	}
	return out
}
