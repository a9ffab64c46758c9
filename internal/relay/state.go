package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/nfrund/courier/internal/auth"
)

// RoleKind tags the state a connection is in. Transitions are monotonic:
// a connection never returns to an earlier state.
type RoleKind int

const (
	// RolePending is the initial state: the connection has not declared
	// itself yet.
	RolePending RoleKind = iota
	// RoleAuthenticated means the auth command succeeded; the connection
	// may now bind a publisher name.
	RoleAuthenticated
	// RolePublishing means the connection is bound to a publisher name
	// and every further frame is a publish payload.
	RolePublishing
	// RoleSubscribing means the connection supplied a filter; control
	// belongs to the coordinator from here on.
	RoleSubscribing
	// RoleTerminated means the connection is done.
	RoleTerminated
)

// Role is the connection's state together with its payload: the bound
// publisher name or the subscription filter, each set exactly once at
// the transition into its state.
type Role struct {
	Kind   RoleKind
	Name   string
	Filter SubscriptionFilter
}

// Violation is a protocol violation that must close the connection. The
// reason is sent to the peer in the close frame.
type Violation struct {
	Reason string
}

func (v *Violation) Error() string {
	return "protocol violation: " + v.Reason
}

// Close reasons, mirroring the wire protocol's advisory strings.
const (
	reasonInvalidPassword  = "Invalid password"
	reasonMalformedCommand = "Malformed command"
	reasonInvalidMessage   = "Invalid message"
	reasonInvalidCommand   = "Invalid command"
)

// Machine classifies handshake frames. The grammar is two fixed
// commands plus one structured payload, so each state is an ordered
// list of predicate+handler rules rather than a general parser.
type Machine struct {
	authenticator auth.Authenticator
}

// NewMachine creates a state machine that checks the auth command
// against the given authenticator.
func NewMachine(authenticator auth.Authenticator) *Machine {
	return &Machine{authenticator: authenticator}
}

type rule struct {
	accepts func(fields []string) bool
	handle  func(m *Machine, ctx context.Context, line string, fields []string) (Role, error)
}

var pendingRules = []rule{
	{accepts: isCommand("auth"), handle: (*Machine).handleAuth},
	// Anything that is not an auth command must be a subscribe payload.
	{accepts: acceptAll, handle: (*Machine).handleSubscribe},
}

var authenticatedRules = []rule{
	{accepts: isCommand("name"), handle: (*Machine).handleName},
	{accepts: acceptAll, handle: (*Machine).handleUnknown},
}

// Advance classifies one text frame against the current role and
// returns the successor role. It is only meaningful for the sequential
// handshake states; Publishing frames go through ParsePublishedMessage
// and Subscribing frames belong to the coordinator.
func (m *Machine) Advance(ctx context.Context, role Role, line string) (Role, error) {
	var rules []rule
	switch role.Kind {
	case RolePending:
		rules = pendingRules
	case RoleAuthenticated:
		rules = authenticatedRules
	default:
		return role, &Violation{Reason: reasonInvalidMessage}
	}

	fields := strings.Fields(line)
	for _, r := range rules {
		if r.accepts(fields) {
			return r.handle(m, ctx, line, fields)
		}
	}
	return role, &Violation{Reason: reasonInvalidMessage}
}

func acceptAll([]string) bool { return true }

// isCommand matches "pub <verb> ..." command lines.
func isCommand(verb string) func([]string) bool {
	return func(fields []string) bool {
		return len(fields) >= 2 && fields[0] == "pub" && fields[1] == verb
	}
}

// handleAuth processes "pub auth <password>": exactly one token after
// the verb.
func (m *Machine) handleAuth(ctx context.Context, _ string, fields []string) (Role, error) {
	if len(fields) != 3 {
		return Role{Kind: RoleTerminated}, &Violation{Reason: reasonMalformedCommand}
	}
	err := m.authenticator.Authenticate(ctx, auth.Credentials{Secret: fields[2]})
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return Role{Kind: RoleTerminated}, &Violation{Reason: reasonInvalidPassword}
	}
	if err != nil {
		return Role{Kind: RoleTerminated}, err
	}
	return Role{Kind: RoleAuthenticated}, nil
}

// handleName processes "pub name <identifier>".
func (m *Machine) handleName(_ context.Context, _ string, fields []string) (Role, error) {
	if len(fields) != 3 {
		return Role{Kind: RoleTerminated}, &Violation{Reason: reasonMalformedCommand}
	}
	return Role{Kind: RolePublishing, Name: fields[2]}, nil
}

// handleSubscribe treats the frame as a subscription request.
// Subscribing is anonymous by design; only publishing needs the secret.
func (m *Machine) handleSubscribe(_ context.Context, line string, _ []string) (Role, error) {
	filter, err := ParseSubscriptionFilter([]byte(line))
	if err != nil {
		return Role{Kind: RoleTerminated}, &Violation{Reason: reasonInvalidMessage}
	}
	return Role{Kind: RoleSubscribing, Filter: filter}, nil
}

func (m *Machine) handleUnknown(context.Context, string, []string) (Role, error) {
	return Role{Kind: RoleTerminated}, &Violation{Reason: reasonInvalidCommand}
}
