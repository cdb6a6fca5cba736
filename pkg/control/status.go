package control

// Status values carried by CommandStatus.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// CommandStatus is the result of a control command.
type CommandStatus struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// OK returns a successful status.
func OK() *CommandStatus {
	return &CommandStatus{Status: StatusOK}
}

// Fail returns a failed status with a reason.
func Fail(reason string) *CommandStatus {
	return &CommandStatus{Status: StatusFail, Error: reason}
}

// WithPayload attaches a result payload.
func (s *CommandStatus) WithPayload(v any) *CommandStatus {
	s.Payload = v
	return s
}

// Succeeded reports whether the command succeeded.
func (s *CommandStatus) Succeeded() bool {
	return s.Status == StatusOK
}
