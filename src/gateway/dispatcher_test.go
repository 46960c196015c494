package gateway

import (
	"encoding/json"
	"log/slog"
	"testing"
)

func testDispatcher() *dispatcher {
	return newDispatcher(slog.Default())
}

func TestDispatcherOrderAndCase(t *testing.T) {
	d := testDispatcher()
	var order []int
	d.register("message_create", func(data json.RawMessage) {
		order = append(order, 1)
	})
	d.register("Message_Create", func(data json.RawMessage) {
		order = append(order, 2)
	})

	d.dispatch("MESSAGE_CREATE", json.RawMessage(`{}`))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("invocation order = %v, want [1 2]", order)
	}
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := testDispatcher()
	var secondRan, laterEventRan bool
	d.register("MESSAGE_CREATE", func(data json.RawMessage) {
		panic("handler blew up")
	})
	d.register("MESSAGE_CREATE", func(data json.RawMessage) {
		secondRan = true
	})
	d.register("GUILD_CREATE", func(data json.RawMessage) {
		laterEventRan = true
	})

	d.dispatch("MESSAGE_CREATE", json.RawMessage(`{}`))
	d.dispatch("GUILD_CREATE", json.RawMessage(`{}`))

	if !secondRan {
		t.Error("second handler did not run after first panicked")
	}
	if !laterEventRan {
		t.Error("handlers for subsequent events did not run")
	}
}

func TestDispatcherUnregisteredEvent(t *testing.T) {
	d := testDispatcher()
	// Must not panic or block.
	d.dispatch("NO_SUCH_EVENT", json.RawMessage(`{}`))
}

func TestDispatcherPayloadPassthrough(t *testing.T) {
	d := testDispatcher()
	var got string
	d.register("READY", func(data json.RawMessage) {
		var payload struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		got = payload.SessionID
	})

	d.dispatch("READY", json.RawMessage(`{"session_id":"abc"}`))

	if got != "abc" {
		t.Errorf("session_id = %q, want abc", got)
	}
}
