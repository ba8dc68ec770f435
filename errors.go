package voxlit

import "fmt"

// Kind distinguishes the error categories the engine surfaces across its
// API boundary (spec section: error kinds).
type Kind int

const (
	// KindInvalidPosition marks a rejected API call: an out-of-range
	// nibble value or a position outside what the caller may address.
	// Rejected at the boundary; no state change.
	KindInvalidPosition Kind = iota
	// KindUnknownVoxelType marks a fatal failure: the transparency shim
	// was asked about a voxel type it has never seen. Indicates upstream
	// corruption of the type channel.
	KindUnknownVoxelType
	// KindBlockNotLoaded marks a spill event whose target block isn't
	// resident yet. Never surfaced to the caller — the coordinator
	// retains the seed and replays it once the block loads.
	KindBlockNotLoaded
	// KindInternalInvariant marks a fatal corruption: a propagator
	// observed a nibble value outside [0,15].
	KindInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPosition:
		return "InvalidPosition"
	case KindUnknownVoxelType:
		return "UnknownVoxelType"
	case KindBlockNotLoaded:
		return "BlockNotLoaded"
	case KindInternalInvariant:
		return "InternalInvariant"
	default:
		return "Unknown"
	}
}

// Error is the engine's single typed error; it carries a Kind so callers
// can switch on it with errors.Is against the sentinel values below.
// LoadConfig's file-read and YAML-parse failures are plain wrapped errors
// without a Kind.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is implements errors.Is support against the Kind sentinels declared
// below (ErrInvalidPosition and friends), matching by Kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is comparisons. Construct a full Error with
// NewError when a message is useful; compare against these otherwise.
var (
	ErrInvalidPosition   = &Error{Kind: KindInvalidPosition}
	ErrUnknownVoxelType  = &Error{Kind: KindUnknownVoxelType}
	ErrBlockNotLoaded    = &Error{Kind: KindBlockNotLoaded}
	ErrInternalInvariant = &Error{Kind: KindInternalInvariant}
)

// NewError builds an Error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
