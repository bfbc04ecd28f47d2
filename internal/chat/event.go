package chat

// Event is the canonical inbound message event decoded by the gateway.
// Raw holds the original frame bytes; a delivered message is forwarded to the
// receiver verbatim, so whatever arrived is what is pushed.
type Event struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Body     string `json:"message,omitempty"`
	FilePath string `json:"file_path,omitempty"`

	Raw []byte `json:"-"`
}

// Error codes carried by ErrorFrame.
const (
	CodeValidationError = "validation_error"
	CodeStorageError    = "storage_error"
	CodeBadRequest      = "bad_request"
)

// ErrorFrame is the typed error event pushed to a sender's own session when
// an inbound message fails validation or persistence.
type ErrorFrame struct {
	Event string `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// NewErrorFrame builds an ErrorFrame with the conventional event name.
func NewErrorFrame(code, message string) ErrorFrame {
	return ErrorFrame{Event: "error", Code: code, Error: message}
}
