package session

import (
	"errors"
	"fmt"
)

// Kind groups error codes into the four classes callers map to responses.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindConflict           Kind = "Conflict"
	KindInvalidInput       Kind = "InvalidInput"
	KindPreconditionFailed Kind = "PreconditionFailed"
)

// Code names one specific failure.
type Code string

const (
	CodeDuplicateConnection Code = "DuplicateConnection"
	CodeInvalidGroupID      Code = "InvalidGroupId"
	CodePeerNotRegistered   Code = "PeerNotRegistered"
	CodeGroupNotFound       Code = "GroupNotFound"
	CodeAlreadyInGroup      Code = "AlreadyInGroup"
	CodePeerNotInGroup      Code = "PeerNotInGroup"
	CodeNotInGroup          Code = "NotInGroup"
	CodePeerNotInSameGroup  Code = "PeerNotInSameGroup"
	CodeInvalidPeerID       Code = "InvalidPeerId"
	CodeMissingPayload      Code = "MissingPayload"
	CodePitNotEmpty         Code = "PitNotEmpty"
	CodeNotPitCreator       Code = "NotPitCreator"
)

// Error is returned by every failing Manager operation. A failed operation
// never changes state.
type Error struct {
	Code    Code
	Kind    Kind
	Message string

	// PitID is the pit the peer is currently in, set for AlreadyInGroup.
	PitID string
}

func (e *Error) Error() string {
	if e.PitID != "" {
		return fmt.Sprintf("%s: %s (pit %s)", e.Code, e.Message, e.PitID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so that errors.Is(err, ErrGroupNotFound) holds for any
// GroupNotFound error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel errors
var (
	ErrDuplicateConnection = &Error{Code: CodeDuplicateConnection, Kind: KindConflict, Message: "peer is already connected"}
	ErrInvalidGroupID      = &Error{Code: CodeInvalidGroupID, Kind: KindInvalidInput, Message: "invalid pit id"}
	ErrPeerNotRegistered   = &Error{Code: CodePeerNotRegistered, Kind: KindNotFound, Message: "peer is not connected"}
	ErrGroupNotFound       = &Error{Code: CodeGroupNotFound, Kind: KindNotFound, Message: "pit not found"}
	ErrAlreadyInGroup      = &Error{Code: CodeAlreadyInGroup, Kind: KindConflict, Message: "already in a pit"}
	ErrPeerNotInGroup      = &Error{Code: CodePeerNotInGroup, Kind: KindPreconditionFailed, Message: "not in any pit"}
	ErrNotInGroup          = &Error{Code: CodeNotInGroup, Kind: KindPreconditionFailed, Message: "sender is not in any pit"}
	ErrPeerNotInSameGroup  = &Error{Code: CodePeerNotInSameGroup, Kind: KindPreconditionFailed, Message: "peers not in same pit"}
	ErrInvalidPeerID       = &Error{Code: CodeInvalidPeerID, Kind: KindInvalidInput, Message: "invalid peer id"}
	ErrMissingPayload      = &Error{Code: CodeMissingPayload, Kind: KindInvalidInput, Message: "payload is required"}
	ErrPitNotEmpty         = &Error{Code: CodePitNotEmpty, Kind: KindConflict, Message: "pit still has members"}
	ErrNotPitCreator       = &Error{Code: CodeNotPitCreator, Kind: KindPreconditionFailed, Message: "only the pit creator can delete the pit"}
)

// errPitIDInUse shares the InvalidGroupId code but is a conflict, not bad input.
var errPitIDInUse = &Error{Code: CodeInvalidGroupID, Kind: KindConflict, Message: "pit id already in use"}

func alreadyInGroup(pitID string) *Error {
	e := *ErrAlreadyInGroup
	e.PitID = pitID
	return &e
}

// KindOf reports the kind of err, or "" when err is not a session error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
