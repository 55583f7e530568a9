package relay

import (
	"errors"
	"fmt"
)

// FailureKind is the closed set of failures the relay reports to peers.
type FailureKind int

const (
	HandshakeFailure FailureKind = iota
	SyntaxFailure
	ClientFailure
	InternalFailure
)

func (k FailureKind) String() string {
	switch k {
	case HandshakeFailure:
		return "handshake"
	case SyntaxFailure:
		return "syntax"
	case ClientFailure:
		return "client"
	case InternalFailure:
		return "internal"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Client failure types sent in the "type" field of an ERROR message.
const (
	TypeSyntaxError        = "SyntaxError"
	TypeTargetNotFound     = "TargetNotFound"
	TypeRedundantVote      = "RedundantVote"
	TypeInvalidDestination = "InvalidDestination"
)

// ErrDuplicateSession is returned by Registry.Register for an id already in use.
var ErrDuplicateSession = errors.New("relay: duplicate session id")

// Failure carries everything needed to report a problem to a peer.
type Failure struct {
	Kind    FailureKind
	Type    string
	Info    any
	Message string
	cause   error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s failure: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s failure: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.cause }

// wire renders the failure as the message sent to the peer. Handshake
// failures are answered with a plain line instead and never reach here.
func (f *Failure) wire() Message {
	switch f.Kind {
	case SyntaxFailure, ClientFailure:
		return Message{
			FieldCmd:  CmdError,
			"type":    f.Type,
			"info":    f.Info,
			"message": f.Message,
		}
	default:
		return Message{FieldCmd: CmdServerError}
	}
}

func syntaxFailure(payload []byte, cause error) *Failure {
	msg := "empty message"
	if cause != nil {
		msg = "could not parse message"
	}
	return &Failure{Kind: SyntaxFailure, Type: TypeSyntaxError, Info: string(payload), Message: msg, cause: cause}
}

func targetNotFound(id any) *Failure {
	return &Failure{
		Kind:    ClientFailure,
		Type:    TypeTargetNotFound,
		Info:    id,
		Message: fmt.Sprintf("no peer with id %v", id),
	}
}

func redundantVote(target string) *Failure {
	return &Failure{
		Kind:    ClientFailure,
		Type:    TypeRedundantVote,
		Info:    target,
		Message: fmt.Sprintf("already denied %s", target),
	}
}

func invalidDestination(to any) *Failure {
	return &Failure{
		Kind:    ClientFailure,
		Type:    TypeInvalidDestination,
		Info:    to,
		Message: "\"to\" must be a peer id or a list of peer ids",
	}
}

func internalFailure(cause error) *Failure {
	return &Failure{Kind: InternalFailure, Message: "unexpected error", cause: cause}
}

// asFailure maps any error onto the closed failure set.
func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return internalFailure(err)
}
