package chatgenius

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents an error response from the REST backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// User is a chat service account.
type User struct {
	ID        string    `json:"userId"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Reaction is a single emoji reaction on a message. At most one reaction per
// (messageId, userId, emoji) triple is kept; see ApplyReaction.
type Reaction struct {
	ID        string    `json:"id"`
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	MessageID string    `json:"messageId"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Message is a chat message as held in client state. Identity is ID; within a
// channel the message list is kept sorted ascending by CreatedAt.
type Message struct {
	ID         string     `json:"id"`
	ChannelID  string     `json:"channelId"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
	EditedAt   *time.Time `json:"editedAt,omitempty"`
	IsEdited   bool       `json:"isEdited,omitempty"`
	ParentID   *string    `json:"parentId,omitempty"`
	Reactions  []Reaction `json:"reactions,omitempty"`
}

// Channel is a client-held channel summary, maintained from the lifecycle
// event stream on top of the REST snapshot.
type Channel struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CreatedByID  string   `json:"createdById"`
	MemberIDs    []string `json:"memberIds,omitempty"`
	MessageCount int      `json:"messageCount"`
}

// Notification is a per-user notification delivered on the user's queue.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ChannelID string    `json:"channelId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// MessagePage is one page of channel history from the REST backend.
type MessagePage struct {
	Content       []Message `json:"content"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int       `json:"totalElements"`
	Size          int       `json:"size"`
	Number        int       `json:"number"`
}

// ============================================================================
// Wire Frames
// ============================================================================

// clientFrame is a client-to-broker command.
type clientFrame struct {
	Action  string          `json:"action"`
	Topic   string          `json:"topic"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionPublish     = "publish"
)

// serverFrame is a broker-to-client event addressed by topic.
type serverFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// connectedPayload is the payload of the handshake ack frame.
type connectedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
