package mqttsn

import (
	"net/netip"
	"time"
)

// ClientState is the gateway's view of a client's session.
type ClientState byte

// Client states as seen by the gateway.
const (
	ClientDisconnected ClientState = iota
	ClientActive
	ClientAsleep
	ClientAwake
	ClientLost
)

var clientStateNames = map[ClientState]string{
	ClientDisconnected: "DISCONNECTED",
	ClientActive:       "ACTIVE",
	ClientAsleep:       "ASLEEP",
	ClientAwake:        "AWAKE",
	ClientLost:         "LOST",
}

func (s ClientState) String() string {
	if name, ok := clientStateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// willStage tracks the will negotiation that follows a CONNECT with the will flag.
type willStage byte

const (
	willNone willStage = iota
	willAwaitTopic
	willAwaitMessage
)

// ClientRecord is the gateway's state for one client endpoint.
type ClientRecord struct {
	Addr     netip.AddrPort
	ClientID string
	// KeepAlive of zero disables the keep-alive sweep for this client.
	KeepAlive     time.Duration
	SleepDuration time.Duration
	State         ClientState
	LastActivity  time.Time

	// PingSent is set while a solicitation PINGREQ is unanswered.
	PingSent   bool
	PingSentAt time.Time

	will willStage
}

// Info returns a snapshot of the record.
func (r *ClientRecord) Info() ClientInfo {
	return ClientInfo{
		Addr:     r.Addr,
		ClientID: r.ClientID,
		State:    r.State,
	}
}

// ClientInfo is a read-only view of a client record passed to callbacks.
type ClientInfo struct {
	Addr     netip.AddrPort
	ClientID string
	State    ClientState
}

// allowedIn reports whether a frame of type t is processed for a client in
// state s. CONNECT and SEARCHGW are handled before any record lookup.
func allowedIn(s ClientState, t MsgType) bool {
	switch t {
	case MsgPINGREQ, MsgDISCONNECT:
		return s == ClientActive || s == ClientAsleep
	case MsgWILLTOPIC, MsgWILLTOPICUPD, MsgWILLMSG, MsgWILLMSGUPD,
		MsgPINGRESP, MsgREGISTER, MsgPUBLISH, MsgPUBREL,
		MsgSUBSCRIBE, MsgUNSUBSCRIBE, MsgPUBACK, MsgPUBREC, MsgPUBCOMP:
		return s == ClientActive
	default:
		return false
	}
}

func secondsDuration(s uint16) time.Duration {
	return time.Duration(s) * time.Second
}
