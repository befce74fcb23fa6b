// Package beam implements the Beam wire protocol: a length-prefixed JSON
// frame codec carrying wavefront, photon, trap, cancel, and refract frames
// between a transport and the Pulse engine, and between the engine and a
// loaded prism's native ABI connection.
//
// The four-byte big-endian length prefix followed by a JSON payload is the
// same discipline internal/firecracker/vsock.go uses for its VsockMessage
// envelope; this package generalizes that envelope from a closed
// Init/Exec/Resp/Ping/Stop/Reload/Stream set of message types to the five
// Beam frame kinds and adds a newline-delimited mode for text-oriented
// streams (no transport adapter in this repository uses it).
package beam

import (
	"encoding/json"
	"fmt"

	"github.com/ultraviolet/uv/internal/domain"
)

// Kind discriminates a Frame's payload.
type Kind string

const (
	KindWavefront Kind = "wavefront"
	KindPhoton    Kind = "photon"
	KindTrap      Kind = "trap"
	KindCancel    Kind = "cancel"
	// KindRefract carries a RefractionCall from a loaded prism back to the
	// runtime on the same connection its own wavefront arrived on. The
	// runtime replies with ordinary photon/trap frames stamped with the
	// refraction's own correlation id.
	KindRefract Kind = "refract"
)

// Frame is the envelope every Beam message travels in: a kind discriminator
// plus the matching payload, exactly one of which is set.
type Frame struct {
	Kind           Kind                   `json:"kind"`
	Wavefront      *domain.Wavefront      `json:"wavefront,omitempty"`
	Photon         *domain.Photon         `json:"photon,omitempty"`
	Trap           *domain.Trap           `json:"trap,omitempty"`
	Cancel         *domain.Cancel         `json:"cancel,omitempty"`
	RefractionCall *domain.RefractionCall `json:"refraction_call,omitempty"`
}

// WavefrontFrame wraps a Wavefront as a Frame.
func WavefrontFrame(w domain.Wavefront) Frame {
	return Frame{Kind: KindWavefront, Wavefront: &w}
}

// PhotonFrame wraps a Photon as a Frame.
func PhotonFrame(p domain.Photon) Frame {
	return Frame{Kind: KindPhoton, Photon: &p}
}

// TrapFrame wraps a Trap as a Frame.
func TrapFrame(t domain.Trap) Frame {
	return Frame{Kind: KindTrap, Trap: &t}
}

// CancelFrame wraps a Cancel as a Frame.
func CancelFrame(c domain.Cancel) Frame {
	return Frame{Kind: KindCancel, Cancel: &c}
}

// RefractionCallFrame wraps a RefractionCall as a Frame.
func RefractionCallFrame(c domain.RefractionCall) Frame {
	return Frame{Kind: KindRefract, RefractionCall: &c}
}

// CorrelationID returns the correlation id carried by whichever payload is
// set, or "" for a malformed frame.
func (f Frame) CorrelationID() string {
	switch f.Kind {
	case KindWavefront:
		if f.Wavefront != nil {
			return f.Wavefront.CorrelationID
		}
	case KindPhoton:
		if f.Photon != nil {
			return f.Photon.CorrelationID
		}
	case KindTrap:
		if f.Trap != nil {
			return f.Trap.CorrelationID
		}
	case KindCancel:
		if f.Cancel != nil {
			return f.Cancel.CorrelationID
		}
	case KindRefract:
		if f.RefractionCall != nil {
			return f.RefractionCall.CorrelationID
		}
	}
	return ""
}

// Validate checks that exactly the payload matching Kind is populated.
func (f Frame) Validate() error {
	count := 0
	if f.Wavefront != nil {
		count++
	}
	if f.Photon != nil {
		count++
	}
	if f.Trap != nil {
		count++
	}
	if f.Cancel != nil {
		count++
	}
	if f.RefractionCall != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("beam frame must carry exactly one payload, got %d", count)
	}
	switch f.Kind {
	case KindWavefront:
		if f.Wavefront == nil {
			return fmt.Errorf("beam frame kind %q missing wavefront payload", f.Kind)
		}
	case KindPhoton:
		if f.Photon == nil {
			return fmt.Errorf("beam frame kind %q missing photon payload", f.Kind)
		}
	case KindTrap:
		if f.Trap == nil {
			return fmt.Errorf("beam frame kind %q missing trap payload", f.Kind)
		}
	case KindCancel:
		if f.Cancel == nil {
			return fmt.Errorf("beam frame kind %q missing cancel payload", f.Kind)
		}
	case KindRefract:
		if f.RefractionCall == nil {
			return fmt.Errorf("beam frame kind %q missing refraction_call payload", f.Kind)
		}
	default:
		return fmt.Errorf("unknown beam frame kind %q", f.Kind)
	}
	return nil
}

// MarshalJSON is the standard encoding/json hook; declared explicitly so the
// zero-value Frame doesn't silently encode as `{"kind":""}` without callers
// noticing during Encode.
func (f Frame) MarshalJSON() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	type alias Frame
	return json.Marshal(alias(f))
}
