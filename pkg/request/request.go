package request

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foldsense/devstate-go/pkg/devicestate"
)

// Request errors.
var (
	ErrInvalidFlags = errors.New("invalid request flags")
	ErrInvalidToken = errors.New("invalid request token")
)

// Token identifies one override request. Tokens only need equality and
// hashing, so any UUID will do.
type Token uuid.UUID

// NilToken is the zero token; it is never a valid request token.
var NilToken Token

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token(uuid.New())
}

// ParseToken parses the textual UUID form of a token.
func ParseToken(s string) (Token, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilToken, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if id == uuid.Nil {
		return NilToken, fmt.Errorf("%w: nil token", ErrInvalidToken)
	}
	return Token(id), nil
}

// String returns the UUID form of the token.
func (t Token) String() string {
	return uuid.UUID(t).String()
}

// Short returns the first 8 characters of the token for display.
func (t Token) Short() string {
	return t.String()[:8]
}

// IsNil reports whether t is the zero token.
func (t Token) IsNil() bool {
	return t == NilToken
}

// ClientID names a registered callback session (one per client process or
// connection).
type ClientID string

// Flags is the bit set passed with a request.
type Flags uint32

const (
	// FlagCancelWhenBaseChanges cancels the request as soon as the
	// provider reports a different base state.
	FlagCancelWhenBaseChanges Flags = 1 << 0

	// knownFlags masks all defined request flags.
	knownFlags = FlagCancelWhenBaseChanges
)

// Validate rejects unknown flag bits.
func (f Flags) Validate() error {
	if rest := f &^ knownFlags; rest != 0 {
		return fmt.Errorf("%w: unknown bits 0x%x", ErrInvalidFlags, uint32(rest))
	}
	return nil
}

// Has reports whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// String returns a readable list of the set flags.
func (f Flags) String() string {
	if f == 0 {
		return "NONE"
	}
	var parts []string
	if f.Has(FlagCancelWhenBaseChanges) {
		parts = append(parts, "CANCEL_WHEN_BASE_CHANGES")
	}
	if rest := f &^ knownFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Status is the lifecycle status of a request.
type Status uint8

const (
	// StatusActive means the request determines the override state.
	StatusActive Status = iota

	// StatusSuspended means a newer request currently takes precedence.
	StatusSuspended

	// StatusCanceled means the request is gone for good.
	StatusCanceled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusSuspended:
		return "SUSPENDED"
	case StatusCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Request is one override request.
type Request struct {
	// Token identifies the request.
	Token Token

	// Client is the callback session that issued the request.
	Client ClientID

	// State is the requested device state.
	State devicestate.DeviceState

	// Flags are the request flags.
	Flags Flags

	// Status is the current lifecycle status.
	Status Status

	// IssuedAt is when the request was created.
	IssuedAt time.Time

	// AwaitingCommit is set while an active request waits for the device
	// to be configured for its state. The commit confirms it.
	AwaitingCommit bool
}

// IsLive reports whether the request has not been canceled.
func (r *Request) IsLive() bool {
	return r.Status != StatusCanceled
}
