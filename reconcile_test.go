package chatgenius

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(offset int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second)
}

func msg(id string, at time.Time) Message {
	return Message{ID: id, ChannelID: "general", AuthorID: "u1", AuthorName: "alice", Content: "hi " + id, CreatedAt: at}
}

func TestApplyNewMessageSortsAscending(t *testing.T) {
	var list []Message
	list = ApplyNewMessage(list, msg("m1", ts(0)))
	list = ApplyNewMessage(list, msg("m2", ts(-1)))

	require.Len(t, list, 2)
	assert.Equal(t, "m2", list[0].ID)
	assert.Equal(t, "m1", list[1].ID)
}

func TestApplyNewMessageIdempotent(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	again := ApplyNewMessage(list, msg("m1", ts(0)))

	assert.Equal(t, list, again)
	assert.Len(t, again, 1)
}

func TestApplyNewMessageTiesKeepInsertionOrder(t *testing.T) {
	at := ts(0)
	list := ApplyNewMessage(nil, msg("first", at))
	list = ApplyNewMessage(list, msg("second", at))
	list = ApplyNewMessage(list, msg("third", at))

	require.Len(t, list, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestApplyNewMessageDoesNotMutateInput(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m2", ts(5)))
	_ = ApplyNewMessage(list, msg("m1", ts(0)))

	assert.Equal(t, "m2", list[0].ID)
	assert.Len(t, list, 1)
}

func TestApplyEditedMessage(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	editedAt := ts(10)
	out := ApplyEditedMessage(list, MessageEdit{ID: "m1", Content: "changed", EditedAt: editedAt})

	require.Len(t, out, 1)
	assert.Equal(t, "changed", out[0].Content)
	assert.True(t, out[0].IsEdited)
	require.NotNil(t, out[0].EditedAt)
	assert.Equal(t, editedAt, *out[0].EditedAt)
	// Original untouched.
	assert.Equal(t, "hi m1", list[0].Content)
}

func TestApplyEditedMessageUnknownIDIsNoop(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	out := ApplyEditedMessage(list, MessageEdit{ID: "missing", Content: "x", EditedAt: ts(1)})
	assert.Equal(t, list, out)
}

func TestApplyDeletedMessage(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	list = ApplyNewMessage(list, msg("m2", ts(1)))

	out := ApplyDeletedMessage(list, "m1")
	require.Len(t, out, 1)
	assert.Equal(t, "m2", out[0].ID)

	assert.Equal(t, out, ApplyDeletedMessage(out, "m1"))
}

func TestApplyReactionUpsertsByUserAndEmoji(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))

	first := Reaction{ID: "r1", Emoji: "👍", UserID: "u2", Username: "bob", MessageID: "m1"}
	list = ApplyReaction(list, first)
	require.Len(t, list[0].Reactions, 1)

	// Redelivery with a new id collapses to the latest.
	second := Reaction{ID: "r2", Emoji: "👍", UserID: "u2", Username: "bob", MessageID: "m1"}
	list = ApplyReaction(list, second)
	require.Len(t, list[0].Reactions, 1)
	assert.Equal(t, "r2", list[0].Reactions[0].ID)

	// A different emoji by the same user coexists.
	list = ApplyReaction(list, Reaction{ID: "r3", Emoji: "🎉", UserID: "u2", MessageID: "m1"})
	assert.Len(t, list[0].Reactions, 2)
}

func TestApplyReactionUnknownMessageIsNoop(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	out := ApplyReaction(list, Reaction{ID: "r1", Emoji: "👍", UserID: "u2", MessageID: "missing"})
	assert.Equal(t, list, out)
}

func TestReactionToggleRoundTrip(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	before := list

	list = ApplyReaction(list, Reaction{ID: "r1", Emoji: "👍", UserID: "u2", MessageID: "m1"})
	list = RemoveReaction(list, ReactionRemove{MessageID: "m1", UserID: "u2", Emoji: "👍"})

	assert.Empty(t, list[0].Reactions)
	assert.Empty(t, before[0].Reactions)
}

func TestRemoveReactionPrefersID(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	list = ApplyReaction(list, Reaction{ID: "r1", Emoji: "👍", UserID: "u2", MessageID: "m1"})
	list = ApplyReaction(list, Reaction{ID: "r2", Emoji: "🎉", UserID: "u2", MessageID: "m1"})

	out := RemoveReaction(list, ReactionRemove{MessageID: "m1", ReactionID: "r2", UserID: "u2", Emoji: "👍"})
	require.Len(t, out[0].Reactions, 1)
	assert.Equal(t, "r1", out[0].Reactions[0].ID)
}

func TestRemoveReactionByUserEmojiFallback(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	list = ApplyReaction(list, Reaction{ID: "r1", Emoji: "👍", UserID: "u2", MessageID: "m1"})

	out := RemoveReaction(list, ReactionRemove{MessageID: "m1", UserID: "u2", Emoji: "👍"})
	assert.Empty(t, out[0].Reactions)

	// Absent reaction is a silent no-op.
	assert.Equal(t, out, RemoveReaction(out, ReactionRemove{MessageID: "m1", UserID: "u2", Emoji: "👍"}))
}

func TestApplyChannelCreatedIdempotent(t *testing.T) {
	channels := ApplyChannelCreated(nil, Channel{ID: "a", Name: "alpha"})
	channels = ApplyChannelCreated(channels, Channel{ID: "a", Name: "alpha"})
	assert.Len(t, channels, 1)
}

func TestApplyChannelDeletedSelectionFallback(t *testing.T) {
	abc := []Channel{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	// Deleting the selected middle channel selects the next one.
	rest, next := ApplyChannelDeleted(abc, "b", "b")
	require.Len(t, rest, 2)
	assert.Equal(t, "c", next)

	// Deleting the selected last channel falls back to the previous.
	rest, next = ApplyChannelDeleted(rest, "c", "c")
	require.Len(t, rest, 1)
	assert.Equal(t, "a", next)

	// Deleting the last remaining channel selects none.
	rest, next = ApplyChannelDeleted(rest, "a", "a")
	assert.Empty(t, rest)
	assert.Equal(t, "", next)
}

func TestApplyChannelDeletedKeepsUnrelatedSelection(t *testing.T) {
	abc := []Channel{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	rest, next := ApplyChannelDeleted(abc, "c", "a")
	assert.Len(t, rest, 2)
	assert.Equal(t, "a", next)
}

func TestApplyChannelDeletedUnknownIDIsNoop(t *testing.T) {
	abc := []Channel{{ID: "a"}}
	rest, next := ApplyChannelDeleted(abc, "zzz", "a")
	assert.Equal(t, abc, rest)
	assert.Equal(t, "a", next)
}

func TestApplyUserUpdateRewritesNames(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	list = ApplyNewMessage(list, Message{ID: "m2", ChannelID: "general", AuthorID: "u2", AuthorName: "bob", CreatedAt: ts(1)})
	list = ApplyReaction(list, Reaction{ID: "r1", Emoji: "👍", UserID: "u1", Username: "alice", MessageID: "m2"})

	out := ApplyUserUpdate(list, UserUpdate{UserID: "u1", Username: "alicia"})

	assert.Equal(t, "alicia", out[0].AuthorName)
	assert.Equal(t, "bob", out[1].AuthorName)
	assert.Equal(t, "alicia", out[1].Reactions[0].Username)
	// Ordering and identity untouched.
	assert.Equal(t, []string{"m1", "m2"}, []string{out[0].ID, out[1].ID})
	// Input untouched.
	assert.Equal(t, "alice", list[0].AuthorName)
	assert.Equal(t, "alice", list[1].Reactions[0].Username)
}

func TestApplyUserUpdateNoMatchReturnsInput(t *testing.T) {
	list := ApplyNewMessage(nil, msg("m1", ts(0)))
	out := ApplyUserUpdate(list, UserUpdate{UserID: "nobody", Username: "x"})
	assert.Equal(t, list, out)
}

func TestGroupReactions(t *testing.T) {
	grouped := GroupReactions([]Reaction{
		{ID: "r1", Emoji: "👍", UserID: "u1"},
		{ID: "r2", Emoji: "👍", UserID: "u2"},
		{ID: "r3", Emoji: "🎉", UserID: "u1"},
	})
	require.Len(t, grouped, 2)
	assert.Len(t, grouped["👍"], 2)
	assert.Len(t, grouped["🎉"], 1)
}
