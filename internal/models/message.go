package models

import "time"

const (
	DirectionSent     = "Sent"
	DirectionReceived = "Received"
)

// Message is a single SMS, inbound or outbound. Rows are immutable
// once persisted.
type Message struct {
	ID         int       `json:"id"`
	ExternalID *string   `json:"external_id,omitempty"`
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  string    `json:"direction"`
}

type Contact struct {
	ID          int    `json:"id"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Notes       string `json:"notes,omitempty"`
}

// ScheduledMessage is a pending future send. Sent flips to true
// exactly once, by the dispatcher, and never reverts.
type ScheduledMessage struct {
	ID               int       `json:"id"`
	Sender           string    `json:"sender"`
	SenderName       string    `json:"sender_name"`
	SenderDepartment string    `json:"sender_department"`
	Recipient        string    `json:"recipient"`
	Body             string    `json:"body"`
	ScheduledFor     time.Time `json:"scheduled_for"`
	Sent             bool      `json:"sent"`
}

// ReadState records how far a department has read a conversation.
// (Department, Recipient) is unique.
type ReadState struct {
	ID         int       `json:"id"`
	Department string    `json:"department"`
	Recipient  string    `json:"recipient"`
	LastRead   time.Time `json:"last_read"`
}
