package session

// Close codes used during the authentication phase. 4000-4999 is the range
// reserved for application use.
const (
	closeAuthFailed  = 4001
	closeAuthTimeout = 4002
	closeAuthError   = 4003
)

// authMessage is the first message a client must send after connecting.
type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`

	// Context captured by the client at hotkey time.
	AppContext    string `json:"app_context,omitempty"`
	SelectedText  string `json:"selected_text,omitempty"`
	ClipboardText string `json:"clipboard_text,omitempty"`
	AppName       string `json:"app_name,omitempty"`

	// ModeID selects a dictation mode explicitly; 0 lets the server resolve
	// one from AppName or fall back to the default mode.
	ModeID int64 `json:"mode_id,omitempty"`
}

// sessionStartMessage acknowledges a successful authentication.
type sessionStartMessage struct {
	Type      string `json:"type"` // "session_start"
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// partialMessage is a live transcription update.
type partialMessage struct {
	Type      string `json:"type"` // "partial"
	Partial   string `json:"partial"`
	Confirmed string `json:"confirmed"`
}

// finalMessage delivers the finished, pipeline-processed dictation.
type finalMessage struct {
	Type        string `json:"type"` // "final"
	Text        string `json:"text"`
	Raw         string `json:"raw"`
	Mode        string `json:"mode"`
	CommandType string `json:"command_type"`
}

// errorMessage reports a recoverable problem without ending the session.
type errorMessage struct {
	Error   string `json:"error"`
	MaxSize int    `json:"max_size,omitempty"`
}
