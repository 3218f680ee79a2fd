package chatgenius

// Topic keys for broker subscriptions. A key identifies one logical event
// stream; it is unique per topic, not per consumer.

// ChannelTopic is the discriminated event stream for one channel (messages,
// edits, deletes, reactions, user updates).
func ChannelTopic(channelID string) string {
	return "/topic/channels/" + channelID
}

// TypingTopic carries bare-username typing pulses for one channel.
func TypingTopic(channelID string) string {
	return "/topic/typing/" + channelID
}

// ChannelEventsTopic is the global channel lifecycle stream. It fans out to
// every consumer; callers filter client-side.
func ChannelEventsTopic() string {
	return "/topic/channels/events"
}

// NotificationsTopic is one user's private notification queue.
func NotificationsTopic(userID string) string {
	return "/queue/users/" + userID + "/notifications"
}

// Outbound publish destinations mirroring the subscription topics.

func messagesDestination(channelID string) string {
	return "/app/channels/" + channelID + "/messages"
}

func typingDestination(channelID string) string {
	return "/app/channels/" + channelID + "/typing"
}

const presenceDestination = "/app/presence"

// metaConnectedTopic is the handshake ack frame the broker sends first.
const metaConnectedTopic = "/meta/connected"
