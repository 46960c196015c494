package fluxer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUserAccessors(t *testing.T) {
	u := NewUser(Record{
		"id":            "u1",
		"username":      "alice",
		"discriminator": "0042",
		"displayName":   "Alice",
		"bot":           true,
		"createdAt":     "2024-03-01T12:00:00Z",
	}, nil)

	if u.ID() != "u1" || u.Username() != "alice" || !u.Bot() {
		t.Errorf("basic accessors: %s %s %v", u.ID(), u.Username(), u.Bot())
	}
	if u.DisplayName() != "Alice" {
		t.Errorf("display name = %q", u.DisplayName())
	}
	if u.String() != "alice#0042" {
		t.Errorf("string = %q, want alice#0042", u.String())
	}
	created, ok := u.CreatedAt()
	if !ok || created.Month() != time.March {
		t.Errorf("created at = %v %v", created, ok)
	}
}

func TestUserFieldFallbacks(t *testing.T) {
	u := NewUser(Record{"username": "bob", "global_name": "Bobby", "avatar": "https://x/a.png"}, nil)
	if u.DisplayName() != "Bobby" {
		t.Errorf("display name fallback = %q, want Bobby", u.DisplayName())
	}
	if u.AvatarURL() != "https://x/a.png" {
		t.Errorf("avatar fallback = %q", u.AvatarURL())
	}
	if u.String() != "bob" {
		t.Errorf("string = %q, want bob (no #0 tag)", u.String())
	}
}

func TestGuildMemberCountVariants(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"member_count", 10},
		{"memberCount", 11},
		{"approximate_member_count", 12},
		{"approximateMemberCount", 13},
	}
	for _, tt := range tests {
		g := NewGuild(Record{tt.key: float64(tt.want)}, nil)
		if g.MemberCount() != tt.want {
			t.Errorf("MemberCount with %s = %d, want %d", tt.key, g.MemberCount(), tt.want)
		}
	}
}

func TestMemberDisplayName(t *testing.T) {
	m := NewMember(Record{
		"nick":     "nickname",
		"guild_id": "g1",
		"user":     map[string]any{"id": "u1", "username": "alice", "global_name": "Alice"},
	}, nil)
	if m.DisplayName() != "nickname" {
		t.Errorf("display name = %q, want nick", m.DisplayName())
	}

	m = NewMember(Record{
		"user": map[string]any{"id": "u1", "username": "alice"},
	}, nil)
	if m.DisplayName() != "alice" {
		t.Errorf("display name = %q, want username fallback", m.DisplayName())
	}
	if m.ID() != "u1" {
		t.Errorf("id = %q, want user id fallback", m.ID())
	}
}

func TestMessageMemberCompletion(t *testing.T) {
	msg := NewMessage(Record{
		"id":         "m1",
		"guild_id":   "g1",
		"channel_id": "c1",
		"author":     map[string]any{"id": "u1", "username": "alice"},
		"member":     map[string]any{"nick": "al"},
	}, nil)

	member := msg.Member()
	if member == nil {
		t.Fatal("member = nil")
	}
	if member.GuildID() != "g1" {
		t.Errorf("member guild id = %q, want g1 (filled from message)", member.GuildID())
	}
	u := member.User()
	if u == nil || u.Username() != "alice" {
		t.Errorf("member user = %v, want author", u)
	}
}

func TestMessageMemberAbsentForDM(t *testing.T) {
	msg := NewMessage(Record{
		"id":     "m1",
		"member": map[string]any{"nick": "al"},
	}, nil)
	if msg.Member() != nil {
		t.Error("member should be nil without guild_id")
	}
}

func TestReactionEmoji(t *testing.T) {
	tests := []struct {
		name  string
		emoji any
		want  string
	}{
		{"unicode", map[string]any{"name": "👍"}, "👍"},
		{"custom", map[string]any{"name": "party", "id": "12345"}, "party:12345"},
		{"plain string", "👍", "👍"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReaction(Record{"emoji": tt.emoji, "count": float64(2)}, nil)
			if r.Emoji() != tt.want {
				t.Errorf("emoji = %q, want %q", r.Emoji(), tt.want)
			}
			if r.Count() != 2 {
				t.Errorf("count = %d, want 2", r.Count())
			}
		})
	}
}

func TestChannelTypePredicates(t *testing.T) {
	ch := NewChannel(Record{"id": "c1", "name": "general", "type": float64(0)}, nil)
	if !ch.IsText() || ch.IsVoice() || ch.IsCategory() {
		t.Error("type predicates wrong for text channel")
	}
	if ch.String() != "#general" {
		t.Errorf("string = %q", ch.String())
	}
}

func TestActionsWithoutClient(t *testing.T) {
	ctx := context.Background()
	msg := NewMessage(Record{"id": "m1", "channel_id": "c1"}, nil)
	if _, err := msg.Reply(ctx, "hi"); !errors.Is(err, ErrNoClient) {
		t.Errorf("reply err = %v, want ErrNoClient", err)
	}
	if err := msg.Delete(ctx); !errors.Is(err, ErrNoClient) {
		t.Errorf("delete err = %v, want ErrNoClient", err)
	}
	ch := NewChannel(Record{"id": "c1"}, nil)
	if _, err := ch.Send(ctx, "hi"); !errors.Is(err, ErrNoClient) {
		t.Errorf("send err = %v, want ErrNoClient", err)
	}
}

func TestRolePermissionsString(t *testing.T) {
	r := NewRole(Record{"permissions": "2048"}, nil)
	if r.Permissions() != 2048 {
		t.Errorf("permissions = %d, want 2048", r.Permissions())
	}
	r = NewRole(Record{"permissions": float64(8)}, nil)
	if r.Permissions() != 8 {
		t.Errorf("permissions = %d, want 8", r.Permissions())
	}
}
