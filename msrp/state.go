package msrp

import "fmt"

// State is the reservation session state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnected
	StateDomainRegistered
	StateVLANJoined
	StateAdvertising
	StateAwaitingListener
	StateStreaming
	StateUnadvertising
	StateAwaitingAdvertisement
	StateLeaving
)

var stateNames = [...]string{
	StateDisconnected:          "disconnected",
	StateConnected:             "connected",
	StateDomainRegistered:      "domain-registered",
	StateVLANJoined:            "vlan-joined",
	StateAdvertising:           "advertising",
	StateAwaitingListener:      "awaiting-listener",
	StateStreaming:             "streaming",
	StateUnadvertising:         "unadvertising",
	StateAwaitingAdvertisement: "awaiting-advertisement",
	StateLeaving:               "leaving",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// operation names the client calls that move the state machine.
type operation string

const (
	opRegisterDomain operation = "RegisterDomain"
	opJoinVLAN       operation = "JoinVLAN"
	opAdvertise      operation = "Advertise"
	opUnadvertise    operation = "Unadvertise"
	opAwaitListener  operation = "AwaitListenerReady"
	opPollAdvertise  operation = "PollTalkerAdvertisement"
	opSendReady      operation = "SendReady"
	opSendLeave      operation = "SendLeave"
	opWithdrawReady  operation = "WithdrawReady"
)

// allowedFrom lists, per operation, the states it may start from.
var allowedFrom = map[operation][]State{
	opRegisterDomain: {StateConnected},
	opJoinVLAN:       {StateDomainRegistered},
	opAdvertise:      {StateVLANJoined, StateAdvertising},
	opUnadvertise:    {StateAdvertising, StateAwaitingListener, StateStreaming, StateUnadvertising},
	opAwaitListener:  {StateAdvertising, StateAwaitingListener},
	opPollAdvertise:  {StateConnected, StateDomainRegistered, StateVLANJoined, StateAwaitingAdvertisement},
	opSendReady:      {StateAwaitingAdvertisement},
	opSendLeave:      {StateAwaitingAdvertisement, StateLeaving},
	opWithdrawReady:  {StateAwaitingAdvertisement},
}

// checkTransition returns ErrInvalidTransition when op may not run in s.
func checkTransition(op operation, s State) error {
	for _, ok := range allowedFrom[op] {
		if ok == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, s)
}
