package fluxer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production Fluxer API endpoint.
	DefaultBaseURL = "https://api.fluxer.app/v1"

	version   = "0.2.0"
	userAgent = "fluxer_go/" + version
)

// Client is the stateless REST collaborator: plain request/response calls
// with uniform error translation. It shares nothing with a gateway Session
// beyond the token value.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the log sink. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a REST client authenticating with the given token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Request performs an HTTP call against the API and returns the parsed JSON
// body (or the raw text for non-JSON responses). Failures are classified by
// status: 401 ErrAuthentication, 404 ErrNotFound, 429 *RateLimitError, any
// other >=400 *APIError.
func (c *Client) Request(ctx context.Context, method, path string, body any) (any, error) {
	data, contentType, err := c.do(ctx, method, path, body, nil)
	if err != nil {
		return nil, err
	}
	if isJSON(contentType) {
		var v any
		if len(data) > 0 {
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, fmt.Errorf("fluxer: could not unmarshal response body: %w", err)
			}
		}
		return v, nil
	}
	return string(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers http.Header) ([]byte, string, error) {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("fluxer: could not marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	requestURL := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("fluxer: could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	c.logger.Debug("api request", "method", method, "path", path)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fluxer: request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fluxer: could not read response body: %w", err)
	}

	if err := classifyStatus(res, resBody); err != nil {
		return nil, "", err
	}
	return resBody, res.Header.Get("Content-Type"), nil
}

func classifyStatus(res *http.Response, body []byte) error {
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		var retryAfter time.Duration
		if raw := res.Header.Get("Retry-After"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}

	case res.StatusCode == http.StatusUnauthorized:
		return ErrAuthentication

	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound

	case res.StatusCode >= 400:
		message := fmt.Sprintf("API error: %d", res.StatusCode)
		if isJSON(res.Header.Get("Content-Type")) {
			var errBody struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body, &errBody) == nil && errBody.Message != "" {
				message = errBody.Message
			}
		}
		return &APIError{StatusCode: res.StatusCode, Message: message}
	}
	return nil
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

// getRecord fetches a single JSON object.
func (c *Client) getRecord(ctx context.Context, path string) (Record, error) {
	return c.record(ctx, http.MethodGet, path, nil)
}

func (c *Client) record(ctx context.Context, method, path string, body any) (Record, error) {
	data, _, err := c.do(ctx, method, path, body, nil)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("fluxer: could not unmarshal response body: %w", err)
	}
	return rec, nil
}

// getRecords fetches a JSON array of objects. A non-array body yields an
// empty slice, matching the API's inconsistent list endpoints.
func (c *Client) getRecords(ctx context.Context, path string) ([]Record, error) {
	data, _, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return []Record{}, nil
	}
	return recs, nil
}

// ------------------------------------------------------------------
// User endpoints
// ------------------------------------------------------------------

// Me returns the currently authenticated bot user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	rec, err := c.getRecord(ctx, "users/@me")
	if err != nil {
		return nil, err
	}
	return &User{model{rec, c}}, nil
}

// User returns a user by ID.
func (c *Client) User(ctx context.Context, userID string) (*User, error) {
	rec, err := c.getRecord(ctx, "users/"+userID)
	if err != nil {
		return nil, err
	}
	return &User{model{rec, c}}, nil
}

// UserByUsername looks a user up by username.
func (c *Client) UserByUsername(ctx context.Context, username string) (*User, error) {
	rec, err := c.getRecord(ctx, "users/username/"+url.PathEscape(username))
	if err != nil {
		return nil, err
	}
	return &User{model{rec, c}}, nil
}

// ------------------------------------------------------------------
// Guild endpoints
// ------------------------------------------------------------------

// Guilds returns all guilds the bot is a member of.
func (c *Client) Guilds(ctx context.Context) ([]*Guild, error) {
	recs, err := c.getRecords(ctx, "users/@me/guilds")
	if err != nil {
		return nil, err
	}
	guilds := make([]*Guild, 0, len(recs))
	for _, rec := range recs {
		guilds = append(guilds, &Guild{model{rec, c}})
	}
	return guilds, nil
}

// Guild returns a guild by ID.
func (c *Client) Guild(ctx context.Context, guildID string) (*Guild, error) {
	rec, err := c.getRecord(ctx, "guilds/"+guildID)
	if err != nil {
		return nil, err
	}
	return &Guild{model{rec, c}}, nil
}

// GuildChannels returns all channels in a guild.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]*Channel, error) {
	recs, err := c.getRecords(ctx, "guilds/"+guildID+"/channels")
	if err != nil {
		return nil, err
	}
	channels := make([]*Channel, 0, len(recs))
	for _, rec := range recs {
		channels = append(channels, &Channel{model{rec, c}})
	}
	return channels, nil
}

// GuildMembers lists up to limit members of a guild.
func (c *Client) GuildMembers(ctx context.Context, guildID string, limit int) ([]*Member, error) {
	recs, err := c.getRecords(ctx, "guilds/"+guildID+"/members?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	members := make([]*Member, 0, len(recs))
	for _, rec := range recs {
		if _, ok := rec["guild_id"]; !ok {
			rec["guild_id"] = guildID
		}
		members = append(members, &Member{model{rec, c}})
	}
	return members, nil
}

// GuildMember returns a single member of a guild.
func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	rec, err := c.getRecord(ctx, "guilds/"+guildID+"/members/"+userID)
	if err != nil {
		return nil, err
	}
	if _, ok := rec["guild_id"]; !ok {
		rec["guild_id"] = guildID
	}
	return &Member{model{rec, c}}, nil
}

// GuildRoles returns all roles in a guild.
func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]*Role, error) {
	recs, err := c.getRecords(ctx, "guilds/"+guildID+"/roles")
	if err != nil {
		return nil, err
	}
	roles := make([]*Role, 0, len(recs))
	for _, rec := range recs {
		roles = append(roles, &Role{model{rec, c}})
	}
	return roles, nil
}

// KickMember removes a member from a guild.
func (c *Client) KickMember(ctx context.Context, guildID, userID, reason string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "guilds/"+guildID+"/members/"+userID, nil, auditHeader(reason))
	return err
}

// BanMember bans a user from a guild, optionally deleting their recent
// messages (deleteMessageSeconds, 0-604800).
func (c *Client) BanMember(ctx context.Context, guildID, userID, reason string, deleteMessageSeconds int) error {
	var body any
	if deleteMessageSeconds > 0 {
		body = map[string]int{"delete_message_seconds": deleteMessageSeconds}
	}
	_, _, err := c.do(ctx, http.MethodPut, "guilds/"+guildID+"/bans/"+userID, body, auditHeader(reason))
	return err
}

// UnbanMember lifts a ban.
func (c *Client) UnbanMember(ctx context.Context, guildID, userID string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "guilds/"+guildID+"/bans/"+userID, nil, nil)
	return err
}

// ------------------------------------------------------------------
// Channel endpoints
// ------------------------------------------------------------------

// Channel returns a channel by ID.
func (c *Client) Channel(ctx context.Context, channelID string) (*Channel, error) {
	rec, err := c.getRecord(ctx, "channels/"+channelID)
	if err != nil {
		return nil, err
	}
	return &Channel{model{rec, c}}, nil
}

// CreateChannelParams holds the optional fields for CreateChannel.
type CreateChannelParams struct {
	Type     int
	Topic    string
	ParentID string
	NSFW     bool
}

// CreateChannel creates a channel in a guild.
func (c *Client) CreateChannel(ctx context.Context, guildID, name string, params CreateChannelParams) (*Channel, error) {
	body := map[string]any{
		"name": name,
		"type": params.Type,
		"nsfw": params.NSFW,
	}
	if params.Topic != "" {
		body["topic"] = params.Topic
	}
	if params.ParentID != "" {
		body["parent_id"] = params.ParentID
	}
	rec, err := c.record(ctx, http.MethodPost, "guilds/"+guildID+"/channels", body)
	if err != nil {
		return nil, err
	}
	return &Channel{model{rec, c}}, nil
}

// DeleteChannel deletes a channel.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "channels/"+channelID, nil, nil)
	return err
}

// ------------------------------------------------------------------
// Message endpoints
// ------------------------------------------------------------------

// Messages fetches up to limit recent messages from a channel, newest first.
func (c *Client) Messages(ctx context.Context, channelID string, limit int) ([]*Message, error) {
	recs, err := c.getRecords(ctx, "channels/"+channelID+"/messages?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	messages := make([]*Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, &Message{model{rec, c}})
	}
	return messages, nil
}

// Message returns a single message.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*Message, error) {
	rec, err := c.getRecord(ctx, "channels/"+channelID+"/messages/"+messageID)
	if err != nil {
		return nil, err
	}
	return &Message{model{rec, c}}, nil
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) (*Message, error) {
	rec, err := c.record(ctx, http.MethodPost, "channels/"+channelID+"/messages", map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	return &Message{model{rec, c}}, nil
}

// EditMessage replaces a message's content.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) (*Message, error) {
	rec, err := c.record(ctx, http.MethodPatch, "channels/"+channelID+"/messages/"+messageID, map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	return &Message{model{rec, c}}, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, _, err := c.do(ctx, http.MethodDelete, "channels/"+channelID+"/messages/"+messageID, nil, nil)
	return err
}

// ------------------------------------------------------------------
// Reaction endpoints
// ------------------------------------------------------------------

// AddReaction adds the bot's reaction to a message. emoji is either a
// unicode emoji or "name:id" for custom emojis.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := "channels/" + channelID + "/messages/" + messageID + "/reactions/" + url.PathEscape(emoji) + "/@me"
	_, _, err := c.do(ctx, http.MethodPut, path, nil, nil)
	return err
}

// RemoveReaction removes a reaction. userID selects whose reaction to
// remove; empty means the bot's own.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	target := "@me"
	if userID != "" {
		target = userID
	}
	path := "channels/" + channelID + "/messages/" + messageID + "/reactions/" + url.PathEscape(emoji) + "/" + target
	_, _, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// ------------------------------------------------------------------
// Gateway
// ------------------------------------------------------------------

// GatewayURL fetches the recommended WebSocket gateway URL.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	rec, err := c.getRecord(ctx, "gateway/bot")
	if err != nil {
		return "", err
	}
	gatewayURL, _ := rec["url"].(string)
	if gatewayURL == "" {
		return "", fmt.Errorf("fluxer: gateway response carried no url")
	}
	return gatewayURL, nil
}

func auditHeader(reason string) http.Header {
	if reason == "" {
		return nil
	}
	return http.Header{"X-Audit-Log-Reason": []string{reason}}
}
