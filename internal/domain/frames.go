package domain

import "encoding/json"

// Wavefront is one inbound request, created by a transport and consumed
// exactly once by a Pulse.
type Wavefront struct {
	CorrelationID string          `json:"id"`
	PrismID       string          `json:"prism"`
	Frequency     string          `json:"frequency"`
	Input         json.RawMessage `json:"input"`
	DeadlineMs    int64           `json:"deadline_ms,omitempty"`
	TraceID       string          `json:"trace_id,omitempty"`
	TraceParent   string          `json:"traceparent,omitempty"`
	TraceState    string          `json:"tracestate,omitempty"`
}

// Photon is one streamed payload. Photons for a given CorrelationID are
// totally ordered by Sequence.
type Photon struct {
	CorrelationID string          `json:"id"`
	Sequence      int             `json:"seq"`
	Value         json.RawMessage `json:"value"`
}

// TrapStatus is the terminal outcome of a correlation.
type TrapStatus string

const (
	TrapOK    TrapStatus = "ok"
	TrapError TrapStatus = "error"
)

// TrapErrorDetail carries the stable error kind and a human message.
type TrapErrorDetail struct {
	Kind    ErrorKind       `json:"kind"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Trap is the terminal frame: exactly one terminates a correlation.
type Trap struct {
	CorrelationID string           `json:"id"`
	Status        TrapStatus       `json:"status"`
	Error         *TrapErrorDetail `json:"error,omitempty"`
}

// Cancel requests cancellation of an in-flight correlation.
type Cancel struct {
	CorrelationID string `json:"id"`
}

// RefractionCall is sent by a loaded prism to invoke one of its declared
// refractions. It carries no input: the router builds the callee's input by
// applying the refraction's transpose mapping against the caller's own
// already-validated wavefront input, which only the runtime holds.
type RefractionCall struct {
	CorrelationID string         `json:"id"`
	Name          RefractionName `json:"name"`
}

// NewOKTrap builds a successful terminal frame.
func NewOKTrap(correlationID string) Trap {
	return Trap{CorrelationID: correlationID, Status: TrapOK}
}

// NewErrorTrap builds a failed terminal frame for the given error kind.
func NewErrorTrap(correlationID string, kind ErrorKind, message string) Trap {
	return Trap{
		CorrelationID: correlationID,
		Status:        TrapError,
		Error:         &TrapErrorDetail{Kind: kind, Message: message},
	}
}
