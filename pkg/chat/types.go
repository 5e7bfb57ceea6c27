// RoomFleet - Multi-agent chat room fleet
// License: MIT
// Copyright (c) 2026 RoomFleet contributors

package chat

import "time"

// Event kinds delivered by the room's event feed.
const (
	EventMessageCreated   = "message-created"
	EventReactionAdded    = "reaction-added"
	EventSummaryRequested = "summary-requested"
)

// Participant kinds.
const (
	KindHuman = "human"
	KindAgent = "agent"
)

type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Mentions  []string  `json:"mentions,omitempty"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
}

type Reaction struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Emoji     string `json:"emoji"`
}

// Event is one entry from the room event feed. Exactly one payload field is
// set, according to Kind.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	RoomID    string    `json:"room_id"`
	Message   *Message  `json:"message,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type PostRequest struct {
	Text     string   `json:"text"`
	Mentions []string `json:"mentions,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
}
