package chatgenius

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// REST is the client for the chat service's HTTP backend. The realtime core
// applies only deltas; initial channel snapshots, mutations with
// request/response error codes (channel CRUD, reactions) and paginated
// history all go through here. Successful mutations are echoed to other
// clients as broker events; the caller does not apply them locally, it
// waits for the echo.
type REST struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     zerolog.Logger
}

func newREST(baseURL string, httpClient *http.Client, tokens TokenProvider, logger zerolog.Logger) *REST {
	return &REST{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.With().Str("component", "rest").Logger(),
	}
}

func (r *REST) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := r.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// 401 reaches the caller as-is: a stale token is the signal to
		// re-Connect with a fresh one.
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		r.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("request rejected")
		return nil, apiErr
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ListChannels fetches the channel snapshot.
func (r *REST) ListChannels(ctx context.Context) ([]Channel, error) {
	data, err := r.doRequest(ctx, "GET", "/api/channels", nil, nil)
	if err != nil {
		return nil, err
	}
	channels, err := decodeJSON[[]Channel](data)
	if err != nil {
		return nil, err
	}
	return *channels, nil
}

// CreateChannel creates a channel. Other clients learn about it via the
// lifecycle stream; the creator gets the channel back synchronously.
func (r *REST) CreateChannel(ctx context.Context, name string, memberIDs []string) (*Channel, error) {
	payload := map[string]interface{}{"name": name}
	if len(memberIDs) > 0 {
		payload["memberIds"] = memberIDs
	}
	data, err := r.doRequest(ctx, "POST", "/api/channels", payload, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Channel](data)
}

// DeleteChannel deletes a channel by id.
func (r *REST) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := r.doRequest(ctx, "DELETE", "/api/channels/"+channelID, nil, nil)
	return err
}

// ChannelMessages fetches one page of a channel's history, oldest first.
func (r *REST) ChannelMessages(ctx context.Context, channelID string, page, size int) (*MessagePage, error) {
	query := map[string]string{"page": strconv.Itoa(page)}
	if size > 0 {
		query["size"] = strconv.Itoa(size)
	}
	data, err := r.doRequest(ctx, "GET", "/api/channels/"+channelID+"/messages", nil, query)
	if err != nil {
		return nil, err
	}
	return decodeJSON[MessagePage](data)
}

// CreateMessage posts a message over REST. Like broker sends, the message is
// only reflected in client state when its MESSAGE_NEW echo arrives.
func (r *REST) CreateMessage(ctx context.Context, channelID, content, parentID string) (*Message, error) {
	payload := map[string]interface{}{"content": content}
	if parentID != "" {
		payload["parentId"] = parentID
	}
	data, err := r.doRequest(ctx, "POST", "/api/channels/"+channelID+"/messages", payload, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Message](data)
}

// AddReaction adds a reaction by (messageId, emoji). The broker fans the
// resulting REACTION_ADD out to other connected clients.
func (r *REST) AddReaction(ctx context.Context, messageID, emoji string) (*Reaction, error) {
	data, err := r.doRequest(ctx, "POST", "/api/messages/"+messageID+"/reactions",
		map[string]string{"emoji": emoji}, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Reaction](data)
}

// RemoveReaction removes a reaction by (messageId, reactionId).
func (r *REST) RemoveReaction(ctx context.Context, messageID, reactionID string) error {
	_, err := r.doRequest(ctx, "DELETE", "/api/messages/"+messageID+"/reactions/"+reactionID, nil, nil)
	return err
}

// SyncUser upserts the signed-in user's account on the backend and returns
// the canonical record.
func (r *REST) SyncUser(ctx context.Context) (*User, error) {
	data, err := r.doRequest(ctx, "POST", "/api/users/sync", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[User](data)
}
