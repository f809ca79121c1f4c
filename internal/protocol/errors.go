package protocol

import "errors"

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorShort indicates a truncated frame.
	FrameErrorShort FrameErrorKind = iota
	// FrameErrorLayout indicates a frame whose length does not match the layout.
	FrameErrorLayout
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorShort:
		return "short frame"
	case FrameErrorLayout:
		return "bad layout"
	default:
		return "unknown"
	}
}

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
}

func (e *FrameError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is matches FrameError values by Kind, so errors.Is(err, ErrShortFrame) works.
func (e *FrameError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*FrameError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrShortFrame = &FrameError{Kind: FrameErrorShort}
	ErrBadLayout  = &FrameError{Kind: FrameErrorLayout}
)

// IsFrameError reports whether err is a FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var ferr *FrameError
	if errors.As(err, &ferr) {
		return ferr.Kind == kind
	}
	return false
}
