package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeItems is sent by the server when a settings session opens
	TypeItems MessageType = "items"

	// TypeSet is sent by the client to change a toggle
	TypeSet MessageType = "set"

	// TypeStatus is sent by the server whenever the effective state changes
	TypeStatus MessageType = "status"

	// TypeError is sent by the server when a request cannot be served
	TypeError MessageType = "error"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// ToggleItem describes one settings toggle
type ToggleItem struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
	Value   bool   `json:"value"`
}

// ItemsPayload is the payload for TypeItems
type ItemsPayload struct {
	Items []ToggleItem `json:"items"`
}

// SetPayload is the payload for TypeSet
type SetPayload struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// StatusPayload is the payload for TypeStatus and GET /api/status
type StatusPayload struct {
	Application     string `json:"application,omitempty"`
	UIOpen          bool   `json:"ui_open"`
	MirrorSetting   bool   `json:"mirror_setting"`
	RedirectSetting bool   `json:"redirect_setting"`
	Mirror          bool   `json:"mirror"`
	Redirect        bool   `json:"redirect"`
	PrimaryAbsent   bool   `json:"primary_absent"`
	Panel           string `json:"panel,omitempty"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Message string `json:"message"`
}
