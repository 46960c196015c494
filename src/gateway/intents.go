package gateway

// Intent is a bit flag declaring a category of gateway events the session
// wants to receive. Combine with bitwise OR.
type Intent int

const (
	// IntentGuilds covers guild create/update/delete and channel events.
	IntentGuilds Intent = 1 << 0
	// IntentGuildMembers covers member join/leave/update.
	IntentGuildMembers Intent = 1 << 1
	// IntentGuildMessages covers MESSAGE_CREATE/UPDATE/DELETE in guilds.
	IntentGuildMessages Intent = 1 << 9
	// IntentMessageContent gates access to the message content field.
	// Privileged.
	IntentMessageContent Intent = 1 << 15

	// IntentsDefault is a sensible default: guilds + messages + content.
	IntentsDefault = IntentGuilds | IntentGuildMessages | IntentMessageContent
)
