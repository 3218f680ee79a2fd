package chatgenius

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Outbound command facade. Sends fail fast with ErrNotConnected instead of
// queuing; the caller retries explicitly once connectivity is back. There is
// no synchronous acknowledgment; the sender sees its own message arrive on
// the subscribed channel stream like any other consumer.

type createMessagePayload struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId,omitempty"`
}

// SendMessage publishes a new message to a channel. parentID is optional and
// threads the message under an existing one.
func (c *Client) SendMessage(ctx context.Context, channelID, content, parentID string) error {
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}
	return c.publish(ctx, messagesDestination(channelID), createMessagePayload{
		Content:  content,
		ParentID: parentID,
	})
}

// SendTyping publishes a fire-and-forget typing pulse for a channel. No
// delivery guarantee, no retry.
func (c *Client) SendTyping(ctx context.Context, channelID string) error {
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}
	_, username := c.conn.Identity()
	return c.publish(ctx, typingDestination(channelID), username)
}

func (c *Client) publish(ctx context.Context, destination string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}
	return c.conn.sendFrame(ctx, clientFrame{
		Action:  actionPublish,
		Topic:   destination,
		ID:      uuid.NewString(),
		Payload: body,
	})
}
