package notification

import "time"

// Dispatch statuses
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Ticket statuses
const (
	TicketOK    = "ok"
	TicketError = "error"
)

// DeviceNotRegistered is the gateway error code of tokens that no longer exist.
const DeviceNotRegistered = "DeviceNotRegistered"

// DeviceToken identifies one installed client for push delivery.
type DeviceToken struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	LastUsed  *time.Time `json:"last_used"`  // UTC
}

// Notification is one logical notification fanned out to many devices.
type Notification struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data"`
	Sound string                 `json:"sound"`
}

// Message is the per-device payload submitted to the gateway.
type Message struct {
	To    string                 `json:"to"`
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Sound string                 `json:"sound"`
	Data  map[string]interface{} `json:"data"`
}

// Ticket is the gateway's answer for one Message, in the same position as the Message.
type Ticket struct {
	Status  string                 `json:"status"`
	ID      string                 `json:"id,omitempty"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorCode returns the gateway error code found in the details, if any.
func (t Ticket) ErrorCode() string {
	if code, ok := t.Details["error"].(string); ok {
		return code
	}
	return ""
}

type TokenError struct {
	Token   string                 `json:"token"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result aggregates a whole dispatch.
type Result struct {
	Status       string       `json:"status"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	TotalSent    int          `json:"total_sent"`
	Errors       []TokenError `json:"errors"`
	Message      string       `json:"message"`
	NoRecipients bool         `json:"no_recipients,omitempty"`
}

// NewDevice contains the token sent by a client to register for push notifications.
type NewDevice struct {
	Token string `json:"token" validate:"required,max=255"`
}
