// Package state keeps an in-memory view of the guilds, channels and recent
// messages seen over a gateway session. It is purely observational: it
// registers ordinary event handlers and never touches the session's own
// state machine.
package state

import (
	"encoding/json"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"personal/fluxer_go/src/fluxer"
	"personal/fluxer_go/src/gateway"
)

const defaultMessageCacheSize = 1024

// State is a mutex-guarded cache fed by gateway dispatches.
type State struct {
	mu       sync.RWMutex
	guilds   map[string]fluxer.Record
	channels map[string]fluxer.Record
	messages *lru.Cache[string, fluxer.Record]
	logger   *slog.Logger
}

// New creates a State holding at most messageCacheSize recent messages
// (<= 0 uses the default).
func New(messageCacheSize int, logger *slog.Logger) *State {
	if messageCacheSize <= 0 {
		messageCacheSize = defaultMessageCacheSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	// lru.New only errors on a non-positive size.
	messages, _ := lru.New[string, fluxer.Record](messageCacheSize)
	return &State{
		guilds:   make(map[string]fluxer.Record),
		channels: make(map[string]fluxer.Record),
		messages: messages,
		logger:   logger,
	}
}

// Attach registers the cache's handlers on a session. Call before Run.
func (st *State) Attach(sess *gateway.Session) {
	sess.On("GUILD_CREATE", st.upsertGuild)
	sess.On("GUILD_UPDATE", st.upsertGuild)
	sess.On("GUILD_DELETE", st.removeGuild)
	sess.On("CHANNEL_CREATE", st.upsertChannel)
	sess.On("CHANNEL_UPDATE", st.upsertChannel)
	sess.On("CHANNEL_DELETE", st.removeChannel)
	sess.On("MESSAGE_CREATE", st.storeMessage)
	sess.On("MESSAGE_DELETE", st.removeMessage)
}

func (st *State) decode(event string, data json.RawMessage) (fluxer.Record, string) {
	var rec fluxer.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		st.logger.Warn("state: could not decode payload", "event", event, "error", err)
		return nil, ""
	}
	id, _ := rec["id"].(string)
	if id == "" {
		st.logger.Warn("state: payload carried no id", "event", event)
		return nil, ""
	}
	return rec, id
}

func (st *State) upsertGuild(data json.RawMessage) {
	rec, id := st.decode("GUILD_CREATE/UPDATE", data)
	if rec == nil {
		return
	}
	st.mu.Lock()
	st.guilds[id] = rec
	st.mu.Unlock()
}

func (st *State) removeGuild(data json.RawMessage) {
	rec, id := st.decode("GUILD_DELETE", data)
	if rec == nil {
		return
	}
	st.mu.Lock()
	delete(st.guilds, id)
	st.mu.Unlock()
}

func (st *State) upsertChannel(data json.RawMessage) {
	rec, id := st.decode("CHANNEL_CREATE/UPDATE", data)
	if rec == nil {
		return
	}
	st.mu.Lock()
	st.channels[id] = rec
	st.mu.Unlock()
}

func (st *State) removeChannel(data json.RawMessage) {
	rec, id := st.decode("CHANNEL_DELETE", data)
	if rec == nil {
		return
	}
	st.mu.Lock()
	delete(st.channels, id)
	st.mu.Unlock()
}

func (st *State) storeMessage(data json.RawMessage) {
	rec, id := st.decode("MESSAGE_CREATE", data)
	if rec == nil {
		return
	}
	st.messages.Add(id, rec)
}

func (st *State) removeMessage(data json.RawMessage) {
	rec, id := st.decode("MESSAGE_DELETE", data)
	if rec == nil {
		return
	}
	st.messages.Remove(id)
}

// Guild returns a copy of a cached guild record.
func (st *State) Guild(id string) (fluxer.Record, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rec, ok := st.guilds[id]
	return copyRecord(rec), ok
}

// Channel returns a copy of a cached channel record.
func (st *State) Channel(id string) (fluxer.Record, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	rec, ok := st.channels[id]
	return copyRecord(rec), ok
}

// Message returns a copy of a cached message record.
func (st *State) Message(id string) (fluxer.Record, bool) {
	rec, ok := st.messages.Get(id)
	return copyRecord(rec), ok
}

// GuildIDs lists the cached guild IDs.
func (st *State) GuildIDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.guilds))
	for id := range st.guilds {
		ids = append(ids, id)
	}
	return ids
}

// MessageCount reports how many messages are currently cached.
func (st *State) MessageCount() int {
	return st.messages.Len()
}

func copyRecord(rec fluxer.Record) fluxer.Record {
	if rec == nil {
		return nil
	}
	out := make(fluxer.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
