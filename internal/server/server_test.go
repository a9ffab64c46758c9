package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/courier/internal/server"
)

func newTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	t.Setenv("COURIER_SECRET", "hunter2")
	t.Setenv("COURIER_SHOW_REPO_PAGE", "true")

	s := server.New()
	s.RegisterRoutes()

	ts := httptest.NewServer(s.E)
	t.Cleanup(func() {
		ts.Close()
		s.Hub.Close()
		_ = s.Bridge.Close()
	})
	return s, ts
}

func wsDial(t *testing.T, ts *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestEndToEndPublishSubscribe(t *testing.T) {
	s, ts := newTestServer(t)

	sub := wsDial(t, ts)
	require.NoError(t, sub.WriteMessage(gws.TextMessage, []byte(`{"publisher":"sensor","topic":"temp"}`)))
	require.Eventually(t, func() bool {
		return s.Hub.Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	pub := wsDial(t, ts)
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte("pub auth hunter2")))
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte("pub name sensor")))
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte(`{"topic":"temp","data":"18.2"}`)))

	_, data, err := sub.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "18.2", string(data))
}

func TestEndToEndAuthRejection(t *testing.T) {
	_, ts := newTestServer(t)

	conn := wsDial(t, ts)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("pub auth wrong")))

	_, _, err := conn.ReadMessage()
	var closeErr *gws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, gws.CloseInvalidFramePayloadData, closeErr.Code)
	assert.Equal(t, "Invalid password", closeErr.Text)
}

func TestHTTPPublishReachesWebSocketSubscriber(t *testing.T) {
	s, ts := newTestServer(t)

	sub := wsDial(t, ts)
	require.NoError(t, sub.WriteMessage(gws.TextMessage, []byte(`{"publisher":"gateway","topic":"alerts"}`)))
	require.Eventually(t, func() bool {
		return s.Hub.Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/publish", strings.NewReader(`{"topic":"alerts","data":"fire"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth("gateway", "hunter2")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	_, data, err := sub.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "fire", string(data))
}

func TestFilterMismatchIsNotDelivered(t *testing.T) {
	s, ts := newTestServer(t)

	sub := wsDial(t, ts)
	require.NoError(t, sub.WriteMessage(gws.TextMessage, []byte(`{"publisher":"sensor","topic":"temp"}`)))
	require.Eventually(t, func() bool {
		return s.Hub.Subscribers() == 1
	}, 2*time.Second, 10*time.Millisecond)

	pub := wsDial(t, ts)
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte("pub auth hunter2")))
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte("pub name other-sensor")))
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte(`{"topic":"temp","data":"nope"}`)))
	require.NoError(t, pub.WriteMessage(gws.TextMessage, []byte(`{"topic":"temp","data":"still nope"}`)))

	sub.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := sub.ReadMessage()
	require.Error(t, err, "no message should arrive for a mismatched publisher")
}

func TestRootRedirect(t *testing.T) {
	_, ts := newTestServer(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestUnknownRouteReturns404(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/definitely-not-a-route")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
