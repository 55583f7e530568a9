package relay

import "fmt"

// Message fields the relay reads or writes.
const (
	FieldCmd   = "cmd"
	FieldTo    = "to"
	FieldFrom  = "from"
	FieldID    = "id"
	FieldWhy   = "why"
	FieldBy    = "by"
	FieldPeers = "peers"
)

// Commands peers may send.
const (
	CmdQuit      = "quit"
	CmdListPeers = "list peers"
	CmdDeny      = "deny"
)

// Commands the relay sends.
const (
	CmdWelcome       = "welcome"
	CmdPeerConnected = "peer connected"
	CmdPeerLeft      = "peer left"
	CmdListPeersRes  = "RES:list peers"
	CmdDenied        = "denied"
	CmdEnd           = "end"
	CmdDenyRes       = "RES:deny"
	CmdError         = "ERROR"
	CmdServerError   = "SERVER ERROR"
)

// Disconnect reasons.
const (
	WhyClientRequest   = "client request"
	WhyDenied          = "denied"
	WhyConnectionClose = "connection closed"
	WhyServerShutdown  = "server shutdown"
)

// Message is one structured value exchanged with a peer.
type Message map[string]any

// Cmd returns the command discriminator, or "" for a plain relay message.
func (m Message) Cmd() string {
	cmd, _ := m[FieldCmd].(string)
	return cmd
}

// DestinationKind tells how a message is addressed.
type DestinationKind int

const (
	NoTarget DestinationKind = iota
	OneTarget
	ManyTargets
)

// Destination is the validated form of a message's "to" field.
type Destination struct {
	Kind DestinationKind
	IDs  []string
}

// destination decides the addressing of m once. A string names one peer, a
// list of strings names several; any other shape is rejected.
func (m Message) destination() (Destination, error) {
	raw, ok := m[FieldTo]
	if !ok || raw == nil {
		return Destination{Kind: NoTarget}, nil
	}

	switch to := raw.(type) {
	case string:
		return Destination{Kind: OneTarget, IDs: []string{to}}, nil
	case []any:
		ids := make([]string, 0, len(to))
		for _, entry := range to {
			id, ok := entry.(string)
			if !ok {
				return Destination{}, invalidDestination(raw)
			}
			ids = append(ids, id)
		}
		return Destination{Kind: ManyTargets, IDs: ids}, nil
	case []string:
		return Destination{Kind: ManyTargets, IDs: append([]string(nil), to...)}, nil
	default:
		return Destination{}, invalidDestination(raw)
	}
}

// Reason explains why a session ended.
type Reason struct {
	Why string
	By  []string
}

func (r Reason) fill(m Message) Message {
	m[FieldWhy] = r.Why
	if len(r.By) > 0 {
		m[FieldBy] = r.By
	}
	return m
}

func welcomeMessage(id string) Message {
	return Message{FieldCmd: CmdWelcome, FieldID: id}
}

func peerConnectedMessage(id string) Message {
	return Message{FieldCmd: CmdPeerConnected, FieldID: id}
}

func peerLeftMessage(id string, reason Reason) Message {
	return reason.fill(Message{FieldCmd: CmdPeerLeft, FieldID: id})
}

func endMessage(reason Reason) Message {
	return reason.fill(Message{FieldCmd: CmdEnd})
}

func listPeersMessage(peers []string) Message {
	return Message{FieldCmd: CmdListPeersRes, FieldPeers: peers}
}

func deniedMessage(by string) Message {
	return Message{FieldCmd: CmdDenied, FieldBy: by}
}

func denyAckMessage(count int) Message {
	return Message{FieldCmd: CmdDenyRes, "success": true, "denied": count}
}

func handshakeErrorLine(name string) []byte {
	return []byte(fmt.Sprintf("ERROR: unsupported message type %q", name))
}
