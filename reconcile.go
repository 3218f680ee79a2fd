package chatgenius

import "sort"

// Reconciliation folds incoming delta events into previously cached client
// state. All functions here are pure: they never mutate their inputs and
// return new slices when anything changes. They are also total: an event
// referencing an unknown id is a silent no-op, because the multiplexed
// transport does not guarantee a creating event is seen before a dependent
// one.

// ApplyNewMessage inserts a message into a channel's list, keeping the list
// sorted ascending by CreatedAt with ties keeping insertion order. Redelivery
// of an id already present returns the input unchanged.
func ApplyNewMessage(existing []Message, incoming Message) []Message {
	for _, m := range existing {
		if m.ID == incoming.ID {
			return existing
		}
	}
	out := make([]Message, 0, len(existing)+1)
	out = append(out, existing...)
	out = append(out, incoming)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ApplyEditedMessage replaces the content of the message with the matching
// id. Editing a message outside the loaded window is a no-op.
func ApplyEditedMessage(existing []Message, edit MessageEdit) []Message {
	idx := indexOfMessage(existing, edit.ID)
	if idx < 0 {
		return existing
	}
	out := append([]Message{}, existing...)
	m := out[idx]
	m.Content = edit.Content
	editedAt := edit.EditedAt
	m.EditedAt = &editedAt
	m.IsEdited = true
	out[idx] = m
	return out
}

// ApplyDeletedMessage removes the message with the matching id, if present.
func ApplyDeletedMessage(existing []Message, id string) []Message {
	idx := indexOfMessage(existing, id)
	if idx < 0 {
		return existing
	}
	out := make([]Message, 0, len(existing)-1)
	out = append(out, existing[:idx]...)
	out = append(out, existing[idx+1:]...)
	return out
}

// ApplyReaction upserts a reaction on its target message. Any existing
// reaction by the same user with the same emoji is replaced, which makes
// redelivery idempotent and lets callers compute toggle semantics before
// emitting the event.
func ApplyReaction(existing []Message, r Reaction) []Message {
	idx := indexOfMessage(existing, r.MessageID)
	if idx < 0 {
		return existing
	}
	out := append([]Message{}, existing...)
	m := out[idx]
	reactions := make([]Reaction, 0, len(m.Reactions)+1)
	for _, cur := range m.Reactions {
		if cur.UserID == r.UserID && cur.Emoji == r.Emoji {
			continue
		}
		reactions = append(reactions, cur)
	}
	m.Reactions = append(reactions, r)
	out[idx] = m
	return out
}

// RemoveReaction filters a reaction out of its message. The event may carry
// either the reaction id or the (userId, emoji) pair; the id wins when both
// are present.
func RemoveReaction(existing []Message, rm ReactionRemove) []Message {
	idx := indexOfMessage(existing, rm.MessageID)
	if idx < 0 {
		return existing
	}
	m := existing[idx]
	reactions := make([]Reaction, 0, len(m.Reactions))
	removed := false
	for _, cur := range m.Reactions {
		if matchesRemoval(cur, rm) {
			removed = true
			continue
		}
		reactions = append(reactions, cur)
	}
	if !removed {
		return existing
	}
	out := append([]Message{}, existing...)
	m.Reactions = reactions
	out[idx] = m
	return out
}

func matchesRemoval(r Reaction, rm ReactionRemove) bool {
	if rm.ReactionID != "" {
		return r.ID == rm.ReactionID
	}
	return r.UserID == rm.UserID && r.Emoji == rm.Emoji
}

// ApplyChannelCreated appends a channel, skipping ids already present.
func ApplyChannelCreated(channels []Channel, ch Channel) []Channel {
	for _, c := range channels {
		if c.ID == ch.ID {
			return channels
		}
	}
	out := make([]Channel, 0, len(channels)+1)
	out = append(out, channels...)
	out = append(out, ch)
	return out
}

// ApplyChannelDeleted removes a channel by id and returns the id the caller
// should select next. If the deleted channel was not the selected one the
// selection is unchanged. Otherwise the neighbor is chosen against the
// post-removal list: the channel now at the deleted position, falling back to
// the last remaining channel, falling back to no selection.
func ApplyChannelDeleted(channels []Channel, channelID, selectedID string) ([]Channel, string) {
	idx := -1
	for i, c := range channels {
		if c.ID == channelID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return channels, selectedID
	}
	out := make([]Channel, 0, len(channels)-1)
	out = append(out, channels[:idx]...)
	out = append(out, channels[idx+1:]...)

	if channelID != selectedID {
		return out, selectedID
	}
	switch {
	case idx < len(out):
		return out, out[idx].ID
	case len(out) > 0:
		return out, out[len(out)-1].ID
	default:
		return out, ""
	}
}

// ApplyUserUpdate rewrites the display name on every message authored by the
// user and on every reaction the user made, leaving ordering and identity
// untouched.
func ApplyUserUpdate(existing []Message, update UserUpdate) []Message {
	changed := false
	out := append([]Message{}, existing...)
	for i, m := range out {
		if m.AuthorID == update.UserID && m.AuthorName != update.Username {
			m.AuthorName = update.Username
			changed = true
		}
		cloned := false
		for j, r := range m.Reactions {
			if r.UserID == update.UserID && r.Username != update.Username {
				if !cloned {
					m.Reactions = append([]Reaction{}, m.Reactions...)
					cloned = true
				}
				m.Reactions[j].Username = update.Username
				changed = true
			}
		}
		out[i] = m
	}
	if !changed {
		return existing
	}
	return out
}

// GroupReactions groups a message's reactions by emoji for display.
func GroupReactions(reactions []Reaction) map[string][]Reaction {
	grouped := make(map[string][]Reaction, len(reactions))
	for _, r := range reactions {
		grouped[r.Emoji] = append(grouped[r.Emoji], r)
	}
	return grouped
}

func indexOfMessage(messages []Message, id string) int {
	for i, m := range messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}
