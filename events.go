package chatgenius

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// ============================================================================
// Channel Stream Events
// ============================================================================

// EventType discriminates the payload variants multiplexed onto a channel's
// event stream.
type EventType string

const (
	EventMessageNew     EventType = "MESSAGE_NEW"
	EventMessageEdit    EventType = "MESSAGE_EDIT"
	EventMessageDelete  EventType = "MESSAGE_DELETE"
	EventReactionAdd    EventType = "REACTION_ADD"
	EventReactionRemove EventType = "REACTION_REMOVE"
	EventUserUpdate     EventType = "USER_UPDATE"
)

// ChannelEvent is the wire envelope for all channel stream events.
type ChannelEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessageEdit is the payload of a MESSAGE_EDIT event.
type MessageEdit struct {
	ID       string    `json:"id"`
	Content  string    `json:"content"`
	EditedAt time.Time `json:"editedAt"`
}

// MessageDelete is the payload of a MESSAGE_DELETE event.
type MessageDelete struct {
	ID string `json:"id"`
}

// ReactionRemove is the payload of a REACTION_REMOVE event. ReactionID is set
// when the remover knew the reaction's id; UserID and Emoji are always set so
// clients that never saw the add can still reconcile.
type ReactionRemove struct {
	MessageID  string `json:"messageId"`
	ReactionID string `json:"reactionId,omitempty"`
	UserID     string `json:"userId"`
	Emoji      string `json:"emoji"`
}

// UserUpdate is the payload of a USER_UPDATE event.
type UserUpdate struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ============================================================================
// Channel Lifecycle Events
// ============================================================================

// LifecycleType discriminates global channel lifecycle events.
type LifecycleType string

const (
	ChannelCreated LifecycleType = "CREATED"
	ChannelDeleted LifecycleType = "DELETED"
)

// LifecycleEvent announces a channel being created or deleted.
type LifecycleEvent struct {
	Type    LifecycleType `json:"type"`
	Channel Channel       `json:"channel"`
}

// ============================================================================
// Demux
// ============================================================================

// ChannelEventDemux routes decoded channel stream variants to typed
// callbacks. Nil callbacks drop their variant. Unknown discriminants and
// unparseable payloads are logged and ignored.
type ChannelEventDemux struct {
	OnMessageNew     func(Message)
	OnMessageEdit    func(MessageEdit)
	OnMessageDelete  func(MessageDelete)
	OnReactionAdd    func(Reaction)
	OnReactionRemove func(ReactionRemove)
	OnUserUpdate     func(UserUpdate)
}

func (d ChannelEventDemux) handler(logger zerolog.Logger) EventHandler {
	return func(raw json.RawMessage) {
		var ev ChannelEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Warn().Err(err).Msg("discarding unparseable channel event")
			return
		}

		switch ev.Type {
		case EventMessageNew:
			var m Message
			if decodeEvent(logger, ev, &m) && d.OnMessageNew != nil {
				d.OnMessageNew(m)
			}
		case EventMessageEdit:
			var p MessageEdit
			if decodeEvent(logger, ev, &p) && d.OnMessageEdit != nil {
				d.OnMessageEdit(p)
			}
		case EventMessageDelete:
			var p MessageDelete
			if decodeEvent(logger, ev, &p) && d.OnMessageDelete != nil {
				d.OnMessageDelete(p)
			}
		case EventReactionAdd:
			var r Reaction
			if decodeEvent(logger, ev, &r) && d.OnReactionAdd != nil {
				d.OnReactionAdd(r)
			}
		case EventReactionRemove:
			var p ReactionRemove
			if decodeEvent(logger, ev, &p) && d.OnReactionRemove != nil {
				d.OnReactionRemove(p)
			}
		case EventUserUpdate:
			var p UserUpdate
			if decodeEvent(logger, ev, &p) && d.OnUserUpdate != nil {
				d.OnUserUpdate(p)
			}
		default:
			logger.Warn().Str("type", string(ev.Type)).Msg("ignoring unknown channel event type")
		}
	}
}

func decodeEvent(logger zerolog.Logger, ev ChannelEvent, v any) bool {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("discarding malformed event payload")
		return false
	}
	return true
}

func lifecycleHandler(logger zerolog.Logger, fn func(LifecycleEvent)) EventHandler {
	return func(raw json.RawMessage) {
		var ev LifecycleEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			logger.Warn().Err(err).Msg("discarding unparseable lifecycle event")
			return
		}
		fn(ev)
	}
}

func typingHandler(logger zerolog.Logger, fn func(username string)) EventHandler {
	return func(raw json.RawMessage) {
		var username string
		if err := json.Unmarshal(raw, &username); err != nil {
			logger.Warn().Err(err).Msg("discarding unparseable typing pulse")
			return
		}
		fn(username)
	}
}

func notificationHandler(logger zerolog.Logger, fn func(Notification)) EventHandler {
	return func(raw json.RawMessage) {
		var n Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			logger.Warn().Err(err).Msg("discarding unparseable notification")
			return
		}
		fn(n)
	}
}
