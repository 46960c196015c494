package gateway

// Payload shapes are fixed by the wire protocol. Identify carries the full
// client description; Resume carries token, session id and sequence only.

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type presence struct {
	Since      *int64           `json:"since"`
	Activities []map[string]any `json:"activities"`
	Status     string           `json:"status"`
	AFK        bool             `json:"afk"`
}

func newPresence(status string, activity map[string]any) presence {
	p := presence{
		Activities: []map[string]any{},
		Status:     status,
	}
	if activity != nil {
		p.Activities = append(p.Activities, activity)
	}
	return p
}

type identifyPayload struct {
	Token      string             `json:"token"`
	Intents    Intent             `json:"intents"`
	Properties identifyProperties `json:"properties"`
	Presence   presence           `json:"presence"`
	Shard      [2]int             `json:"shard"`
}

type resumePayload struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}
