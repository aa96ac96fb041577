package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the minimal envelope used for client pings.
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage is pushed on every job phase or state change.
type WSProgressMessage struct {
	Type   string       `json:"type"`
	JobID  string       `json:"jobId"`
	Status RecordStatus `json:"status"`
	Phase  string       `json:"phase,omitempty"`
}

// WSCompleteMessage is pushed once when a job reaches succeeded.
type WSCompleteMessage struct {
	Type   string      `json:"type"`
	JobID  string      `json:"jobId"`
	Result interface{} `json:"result"`
}

// WSErrorMessage is pushed once when a job reaches failed or timed_out.
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError carries a machine code and human detail.
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
