package relay_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/courier/internal/auth"
	"github.com/nfrund/courier/internal/relay"
)

func newTestMachine() *relay.Machine {
	return relay.NewMachine(auth.NewSecretAuthenticator("hunter2"))
}

func advance(t *testing.T, m *relay.Machine, role relay.Role, line string) (relay.Role, error) {
	t.Helper()
	return m.Advance(context.Background(), role, line)
}

func requireViolation(t *testing.T, err error, reason string) {
	t.Helper()
	var violation *relay.Violation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, reason, violation.Reason)
}

func TestAuthSucceedsWithCorrectPassword(t *testing.T) {
	m := newTestMachine()

	role, err := advance(t, m, relay.Role{Kind: relay.RolePending}, "pub auth hunter2")
	require.NoError(t, err)
	assert.Equal(t, relay.RoleAuthenticated, role.Kind)
}

func TestAuthRejectsWrongPassword(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RolePending}, "pub auth letmein")
	requireViolation(t, err, "Invalid password")
}

func TestAuthRejectsMissingPassword(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RolePending}, "pub auth")
	requireViolation(t, err, "Malformed command")
}

func TestAuthRejectsExtraTokens(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RolePending}, "pub auth hunter2 extra")
	requireViolation(t, err, "Malformed command")
}

func TestNameBindsPublisher(t *testing.T) {
	m := newTestMachine()

	role, err := advance(t, m, relay.Role{Kind: relay.RoleAuthenticated}, "pub name weather-station")
	require.NoError(t, err)
	assert.Equal(t, relay.RolePublishing, role.Kind)
	assert.Equal(t, "weather-station", role.Name)
}

func TestNameRejectsMissingIdentifier(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RoleAuthenticated}, "pub name")
	requireViolation(t, err, "Malformed command")
}

func TestNameRejectsExtraTokens(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RoleAuthenticated}, "pub name one two")
	requireViolation(t, err, "Malformed command")
}

func TestNameBeforeAuthIsNotACommand(t *testing.T) {
	// A "pub name" line from a pending connection is parsed as a
	// subscription request and fails as such.
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RolePending}, "pub name sneaky")
	requireViolation(t, err, "Invalid message")
}

func TestUnknownCommandAfterAuth(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RoleAuthenticated}, "pub shout loud")
	requireViolation(t, err, "Invalid command")
}

func TestSubscribeFromPending(t *testing.T) {
	m := newTestMachine()

	role, err := advance(t, m, relay.Role{Kind: relay.RolePending}, `{"publisher":"weather-station","topic":"temp"}`)
	require.NoError(t, err)
	assert.Equal(t, relay.RoleSubscribing, role.Kind)
	assert.Equal(t, "weather-station", role.Filter.PublisherName)
	assert.Equal(t, "temp", role.Filter.Topic)
}

func TestSubscribeRejectsInvalidJSON(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RolePending}, "not json at all")
	requireViolation(t, err, "Invalid message")
}

func TestSubscribeRejectsIncompleteFilter(t *testing.T) {
	m := newTestMachine()

	_, err := advance(t, m, relay.Role{Kind: relay.RolePending}, `{"publisher":"weather-station"}`)
	requireViolation(t, err, "Invalid message")
}

func TestAdvanceRejectsTerminalStates(t *testing.T) {
	m := newTestMachine()

	for _, kind := range []relay.RoleKind{relay.RolePublishing, relay.RoleSubscribing, relay.RoleTerminated} {
		_, err := advance(t, m, relay.Role{Kind: kind}, "pub auth hunter2")
		requireViolation(t, err, "Invalid message")
	}
}

func TestMessageParsing(t *testing.T) {
	msg, err := relay.ParsePublishedMessage([]byte(`{"topic":"temp","data":"21.5"}`))
	require.NoError(t, err)
	assert.Equal(t, "temp", msg.Topic)
	assert.Equal(t, "21.5", msg.Data)

	// Data may be empty; the relay never interprets it.
	msg, err = relay.ParsePublishedMessage([]byte(`{"topic":"heartbeat"}`))
	require.NoError(t, err)
	assert.Empty(t, msg.Data)

	_, err = relay.ParsePublishedMessage([]byte(`{"data":"orphan"}`))
	require.Error(t, err)

	_, err = relay.ParsePublishedMessage([]byte(`{"topic":`))
	require.Error(t, err)
}

func TestFilterMatching(t *testing.T) {
	filter := relay.SubscriptionFilter{PublisherName: "weather-station", Topic: "temp"}

	assert.True(t, filter.Matches(relay.Envelope{
		PublisherName: "weather-station",
		Message:       relay.PublishedMessage{Topic: "temp", Data: "21.5"},
	}))
	assert.False(t, filter.Matches(relay.Envelope{
		PublisherName: "weather-station",
		Message:       relay.PublishedMessage{Topic: "humidity"},
	}))
	assert.False(t, filter.Matches(relay.Envelope{
		PublisherName: "other-station",
		Message:       relay.PublishedMessage{Topic: "temp"},
	}))
	// Matching is case-sensitive.
	assert.False(t, filter.Matches(relay.Envelope{
		PublisherName: "Weather-Station",
		Message:       relay.PublishedMessage{Topic: "temp"},
	}))
}
