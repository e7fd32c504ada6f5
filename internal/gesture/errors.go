package gesture

import "errors"

// Configuration errors, returned synchronously while gestures are authored.
var (
	ErrDuplicateName   = errors.New("duplicate name")
	ErrUnknownJoint    = errors.New("unknown joint")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidKind     = errors.New("invalid relationship kind")
)

// Runtime conditions. They never fail a gesture; the condition is simply
// unmet for the frame.
var (
	ErrJointMissing = errors.New("joint not tracked")
	ErrNoAnchor     = errors.New("no anchor position")
)

// IsConfigurationError reports whether err is one of the authoring errors.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrUnknownJoint) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidKind)
}
