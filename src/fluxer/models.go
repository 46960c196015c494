package fluxer

import (
	"context"
	"fmt"
	"time"
)

// Record is a server-supplied JSON object. Models are read-only projections
// over a Record plus an optional client back-reference used to make further
// calls; the client is never owned by the model.
type Record map[string]any

// first returns the first key present in the record, handling the API's mix
// of camelCase and snake_case field names.
func (r Record) first(keys ...string) any {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (r Record) str(keys ...string) string {
	if s, ok := r.first(keys...).(string); ok {
		return s
	}
	return ""
}

func (r Record) boolean(key string) bool {
	b, _ := r[key].(bool)
	return b
}

func (r Record) integer(keys ...string) int {
	switch v := r.first(keys...).(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (r Record) timestamp(keys ...string) (time.Time, bool) {
	raw := r.str(keys...)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type model struct {
	rec    Record
	client *Client
}

// ID returns the unique ID of the object.
func (m model) ID() string { return m.rec.str("id") }

// Record exposes the raw server-supplied record.
func (m model) Record() Record { return m.rec }

// ------------------------------------------------------------------
// User
// ------------------------------------------------------------------

// User is a platform user account.
type User struct{ model }

// NewUser wraps a record; client may be nil for read-only use.
func NewUser(rec Record, client *Client) *User { return &User{model{rec, client}} }

func (u *User) Username() string { return u.rec.str("username") }

// Discriminator is the user's tag, "0" on newer platforms.
func (u *User) Discriminator() string {
	if d := u.rec.str("discriminator"); d != "" {
		return d
	}
	return "0"
}

func (u *User) DisplayName() string { return u.rec.str("displayName", "global_name") }
func (u *User) AvatarURL() string   { return u.rec.str("avatarUrl", "avatar") }
func (u *User) Bot() bool           { return u.rec.boolean("bot") }
func (u *User) Status() string      { return u.rec.str("status") }

func (u *User) CreatedAt() (time.Time, bool) {
	return u.rec.timestamp("createdAt", "created_at")
}

// String renders username#discriminator, omitting the "#0" tag.
func (u *User) String() string {
	if d := u.Discriminator(); d != "" && d != "0" {
		return u.Username() + "#" + d
	}
	return u.Username()
}

// ------------------------------------------------------------------
// Role
// ------------------------------------------------------------------

// Role is a guild role.
type Role struct{ model }

func NewRole(rec Record, client *Client) *Role { return &Role{model{rec, client}} }

func (r *Role) Name() string      { return r.rec.str("name") }
func (r *Role) Color() int        { return r.rec.integer("color") }
func (r *Role) Position() int     { return r.rec.integer("position") }
func (r *Role) Mentionable() bool { return r.rec.boolean("mentionable") }
func (r *Role) Hoist() bool       { return r.rec.boolean("hoist") }

// Permissions is the permission bitfield; the API serves it as either a
// number or a numeric string.
func (r *Role) Permissions() int64 {
	switch v := r.rec.first("permissions").(type) {
	case float64:
		return int64(v)
	case string:
		var n int64
		fmt.Sscanf(v, "%d", &n)
		return n
	}
	return 0
}

// ------------------------------------------------------------------
// Member
// ------------------------------------------------------------------

// Member is a user plus guild-specific data.
type Member struct{ model }

func NewMember(rec Record, client *Client) *Member { return &Member{model{rec, client}} }

func (m *Member) User() *User {
	if rec, ok := m.rec["user"].(map[string]any); ok {
		return NewUser(rec, m.client)
	}
	return nil
}

func (m *Member) Nick() string    { return m.rec.str("nick") }
func (m *Member) GuildID() string { return m.rec.str("guild_id") }
func (m *Member) Deaf() bool      { return m.rec.boolean("deaf") }
func (m *Member) Mute() bool      { return m.rec.boolean("mute") }

// DisplayName is the nick if set, falling back to the user's display name or
// username.
func (m *Member) DisplayName() string {
	if nick := m.Nick(); nick != "" {
		return nick
	}
	if u := m.User(); u != nil {
		if dn := u.DisplayName(); dn != "" {
			return dn
		}
		return u.Username()
	}
	return ""
}

// RoleIDs lists the member's role IDs.
func (m *Member) RoleIDs() []string {
	raw, _ := m.rec["roles"].([]any)
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if id, ok := r.(string); ok {
			roles = append(roles, id)
		}
	}
	return roles
}

func (m *Member) JoinedAt() (time.Time, bool) {
	return m.rec.timestamp("joined_at")
}

// ID resolves to the underlying user's ID when the member record itself
// carries none.
func (m *Member) ID() string {
	if id := m.rec.str("id"); id != "" {
		return id
	}
	if u := m.User(); u != nil {
		return u.ID()
	}
	return ""
}

// Kick removes this member from its guild.
func (m *Member) Kick(ctx context.Context, reason string) error {
	if m.client == nil {
		return ErrNoClient
	}
	return m.client.KickMember(ctx, m.GuildID(), m.ID(), reason)
}

// Ban bans this member from its guild.
func (m *Member) Ban(ctx context.Context, reason string, deleteMessageSeconds int) error {
	if m.client == nil {
		return ErrNoClient
	}
	return m.client.BanMember(ctx, m.GuildID(), m.ID(), reason, deleteMessageSeconds)
}

// ------------------------------------------------------------------
// Channel
// ------------------------------------------------------------------

// Channel type constants.
const (
	ChannelGuildText    = 0
	ChannelDM           = 1
	ChannelGuildVoice   = 2
	ChannelCategory     = 4
	ChannelAnnouncement = 5
)

// Channel is a guild channel (text, voice, category, ...).
type Channel struct{ model }

func NewChannel(rec Record, client *Client) *Channel { return &Channel{model{rec, client}} }

func (ch *Channel) Name() string     { return ch.rec.str("name") }
func (ch *Channel) Type() int        { return ch.rec.integer("type") }
func (ch *Channel) GuildID() string  { return ch.rec.str("guild_id") }
func (ch *Channel) Topic() string    { return ch.rec.str("topic") }
func (ch *Channel) Position() int    { return ch.rec.integer("position") }
func (ch *Channel) ParentID() string { return ch.rec.str("parent_id") }
func (ch *Channel) NSFW() bool       { return ch.rec.boolean("nsfw") }

func (ch *Channel) IsText() bool     { return ch.Type() == ChannelGuildText }
func (ch *Channel) IsVoice() bool    { return ch.Type() == ChannelGuildVoice }
func (ch *Channel) IsCategory() bool { return ch.Type() == ChannelCategory }

// Send posts a message to this channel.
func (ch *Channel) Send(ctx context.Context, content string) (*Message, error) {
	if ch.client == nil {
		return nil, ErrNoClient
	}
	return ch.client.SendMessage(ctx, ch.ID(), content)
}

// Messages fetches recent messages from this channel.
func (ch *Channel) Messages(ctx context.Context, limit int) ([]*Message, error) {
	if ch.client == nil {
		return nil, ErrNoClient
	}
	return ch.client.Messages(ctx, ch.ID(), limit)
}

// Delete deletes this channel.
func (ch *Channel) Delete(ctx context.Context) error {
	if ch.client == nil {
		return ErrNoClient
	}
	return ch.client.DeleteChannel(ctx, ch.ID())
}

func (ch *Channel) String() string { return "#" + ch.Name() }

// ------------------------------------------------------------------
// Guild
// ------------------------------------------------------------------

// Guild is a server.
type Guild struct{ model }

func NewGuild(rec Record, client *Client) *Guild { return &Guild{model{rec, client}} }

func (g *Guild) Name() string        { return g.rec.str("name") }
func (g *Guild) IconURL() string     { return g.rec.str("iconUrl", "icon") }
func (g *Guild) OwnerID() string     { return g.rec.str("owner_id") }
func (g *Guild) Description() string { return g.rec.str("description") }

func (g *Guild) MemberCount() int {
	return g.rec.integer("member_count", "memberCount",
		"approximate_member_count", "approximateMemberCount")
}

func (g *Guild) PreferredLocale() string {
	if l := g.rec.str("preferred_locale"); l != "" {
		return l
	}
	return "en-US"
}

func (g *Guild) CreatedAt() (time.Time, bool) {
	return g.rec.timestamp("createdAt", "created_at")
}

// Channels fetches all channels in this guild.
func (g *Guild) Channels(ctx context.Context) ([]*Channel, error) {
	if g.client == nil {
		return nil, ErrNoClient
	}
	return g.client.GuildChannels(ctx, g.ID())
}

// Members fetches up to limit members of this guild.
func (g *Guild) Members(ctx context.Context, limit int) ([]*Member, error) {
	if g.client == nil {
		return nil, ErrNoClient
	}
	return g.client.GuildMembers(ctx, g.ID(), limit)
}

// Member fetches a single member by user ID.
func (g *Guild) Member(ctx context.Context, userID string) (*Member, error) {
	if g.client == nil {
		return nil, ErrNoClient
	}
	return g.client.GuildMember(ctx, g.ID(), userID)
}

// Roles fetches all roles in this guild.
func (g *Guild) Roles(ctx context.Context) ([]*Role, error) {
	if g.client == nil {
		return nil, ErrNoClient
	}
	return g.client.GuildRoles(ctx, g.ID())
}

// Ban bans a user from this guild.
func (g *Guild) Ban(ctx context.Context, userID, reason string, deleteMessageSeconds int) error {
	if g.client == nil {
		return ErrNoClient
	}
	return g.client.BanMember(ctx, g.ID(), userID, reason, deleteMessageSeconds)
}

// Unban lifts a ban in this guild.
func (g *Guild) Unban(ctx context.Context, userID string) error {
	if g.client == nil {
		return ErrNoClient
	}
	return g.client.UnbanMember(ctx, g.ID(), userID)
}

func (g *Guild) String() string { return g.Name() }

// ------------------------------------------------------------------
// Reaction
// ------------------------------------------------------------------

// Reaction is a reaction on a message.
type Reaction struct{ model }

func NewReaction(rec Record, client *Client) *Reaction { return &Reaction{model{rec, client}} }

// Emoji renders the reaction emoji, "name:id" for custom emojis.
func (r *Reaction) Emoji() string {
	switch v := r.rec["emoji"].(type) {
	case map[string]any:
		name, _ := v["name"].(string)
		if id, ok := v["id"].(string); ok && id != "" {
			return name + ":" + id
		}
		return name
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (r *Reaction) Count() int { return r.rec.integer("count") }
func (r *Reaction) Me() bool   { return r.rec.boolean("me") }

// ------------------------------------------------------------------
// Message
// ------------------------------------------------------------------

// Message is a message in a channel.
type Message struct{ model }

func NewMessage(rec Record, client *Client) *Message { return &Message{model{rec, client}} }

func (m *Message) Content() string   { return m.rec.str("content") }
func (m *Message) ChannelID() string { return m.rec.str("channel_id") }
func (m *Message) GuildID() string   { return m.rec.str("guild_id") }
func (m *Message) Pinned() bool      { return m.rec.boolean("pinned") }

func (m *Message) Author() *User {
	if rec, ok := m.rec["author"].(map[string]any); ok {
		return NewUser(rec, m.client)
	}
	return nil
}

// Member returns guild member data for the author, present only in guild
// messages. The partial member record is completed from the message's own
// guild_id and author fields.
func (m *Message) Member() *Member {
	rec, ok := m.rec["member"].(map[string]any)
	if !ok || m.GuildID() == "" {
		return nil
	}
	if _, ok := rec["guild_id"]; !ok {
		rec["guild_id"] = m.GuildID()
	}
	if _, ok := rec["user"]; !ok {
		if author, ok := m.rec["author"]; ok {
			rec["user"] = author
		}
	}
	return NewMember(rec, m.client)
}

func (m *Message) CreatedAt() (time.Time, bool) {
	return m.rec.timestamp("timestamp", "created_at")
}

func (m *Message) EditedAt() (time.Time, bool) {
	return m.rec.timestamp("edited_timestamp", "edited_at")
}

func (m *Message) Reactions() []*Reaction {
	raw, _ := m.rec["reactions"].([]any)
	reactions := make([]*Reaction, 0, len(raw))
	for _, r := range raw {
		if rec, ok := r.(map[string]any); ok {
			reactions = append(reactions, NewReaction(rec, m.client))
		}
	}
	return reactions
}

// Attachments returns the raw attachment records.
func (m *Message) Attachments() []Record {
	return m.records("attachments")
}

// Embeds returns the raw embed records.
func (m *Message) Embeds() []Record {
	return m.records("embeds")
}

func (m *Message) records(key string) []Record {
	raw, _ := m.rec[key].([]any)
	out := make([]Record, 0, len(raw))
	for _, r := range raw {
		if rec, ok := r.(map[string]any); ok {
			out = append(out, Record(rec))
		}
	}
	return out
}

// Reply sends a message to the same channel.
func (m *Message) Reply(ctx context.Context, content string) (*Message, error) {
	if m.client == nil {
		return nil, ErrNoClient
	}
	return m.client.SendMessage(ctx, m.ChannelID(), content)
}

// Edit replaces this message's content.
func (m *Message) Edit(ctx context.Context, content string) (*Message, error) {
	if m.client == nil {
		return nil, ErrNoClient
	}
	return m.client.EditMessage(ctx, m.ChannelID(), m.ID(), content)
}

// Delete deletes this message.
func (m *Message) Delete(ctx context.Context) error {
	if m.client == nil {
		return ErrNoClient
	}
	return m.client.DeleteMessage(ctx, m.ChannelID(), m.ID())
}

// AddReaction adds the bot's reaction to this message.
func (m *Message) AddReaction(ctx context.Context, emoji string) error {
	if m.client == nil {
		return ErrNoClient
	}
	return m.client.AddReaction(ctx, m.ChannelID(), m.ID(), emoji)
}

// RemoveReaction removes a reaction; empty userID means the bot's own.
func (m *Message) RemoveReaction(ctx context.Context, emoji, userID string) error {
	if m.client == nil {
		return ErrNoClient
	}
	return m.client.RemoveReaction(ctx, m.ChannelID(), m.ID(), emoji, userID)
}
