package integration

import (
	"encoding/json"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wsHost      = "localhost:8080"
	testTimeout = 15 * time.Second
)

// jwtSecret must match the auth.jwtSecret the server under test runs
// with; override it with ARCADE_AUTH_JWT_SECRET for non-default setups.
func jwtSecret() string {
	if s := os.Getenv("ARCADE_AUTH_JWT_SECRET"); s != "" {
		return s
	}
	return "default-secret"
}

func signToken(t *testing.T, login string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   login,
		ID:        uuid.New().String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(jwtSecret()))
	require.NoError(t, err)
	return signed
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	t     *testing.T
	login string
	conn  *websocket.Conn
}

func dial(t *testing.T, login string) *client {
	t.Helper()
	u := url.URL{
		Scheme:   "ws",
		Host:     wsHost,
		Path:     "/ws",
		RawQuery: "token=" + url.QueryEscape(signToken(t, login)),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoErrorf(t, err, "failed to connect as %s", login)
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, login: login, conn: conn}
}

func (c *client) send(event string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// waitFor reads frames until one with the wanted event arrives,
// discarding everything else (presence announcements, ticks of other
// sessions), and decodes its data into out.
func (c *client) waitFor(event string, out any) {
	c.t.Helper()
	deadline := time.Now().Add(testTimeout)
	require.NoError(c.t, c.conn.SetReadDeadline(deadline))

	for {
		var env envelope
		err := c.conn.ReadJSON(&env)
		require.NoErrorf(c.t, err, "%s: waiting for %q", c.login, event)
		if env.Event != event {
			continue
		}
		if out != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, out))
		}
		return
	}
}

func TestE2EMatchFlow(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping integration test: set INTEGRATION env var to run")
	}

	suffix := uuid.New().String()[:8]
	alice := dial(t, "it-alice-"+suffix)
	bob := dial(t, "it-bob-"+suffix)

	var connected map[string]string
	alice.waitFor("connected", &connected)
	assert.NotEmpty(t, connected["clientId"])
	bob.waitFor("connected", nil)

	// Alice opens a random match and waits.
	alice.send("joinGame", map[string]string{"mode": "easy"})
	var waiting map[string]string
	alice.waitFor("waiting", &waiting)
	gameID := waiting["gameId"]
	require.NotEmpty(t, gameID)

	// Bob joins the same pool and completes the pair.
	bob.send("joinGame", map[string]string{"mode": "easy"})

	var ready struct {
		GameID string `json:"gameId"`
		Status string `json:"status"`
	}
	alice.waitFor("gameReady", &ready)
	assert.Equal(t, gameID, ready.GameID)
	assert.Equal(t, "ready", ready.Status)

	// The engine streams state to both players.
	var update struct {
		GameID       string `json:"gameId"`
		BallPosition struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"ballPosition"`
	}
	bob.waitFor("gameUpdate", &update)
	assert.Equal(t, gameID, update.GameID)

	// Bob abandons; Alice wins by forfeit.
	bob.send("leaveGame", map[string]string{})

	var finished struct {
		GameID  string `json:"gameId"`
		Status  string `json:"status"`
		Result  int    `json:"result"`
		Player1 struct {
			Login string `json:"id"`
			Score int    `json:"score"`
		} `json:"player1"`
	}
	alice.waitFor("gameFinished", &finished)
	assert.Equal(t, gameID, finished.GameID)
	assert.Equal(t, "finished", finished.Status)
	assert.Equal(t, 1, finished.Result)
	assert.Equal(t, alice.login, finished.Player1.Login)
	assert.Equal(t, 5, finished.Player1.Score)
}

func TestE2ERejectsBadToken(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping integration test: set INTEGRATION env var to run")
	}

	u := url.URL{Scheme: "ws", Host: wsHost, Path: "/ws", RawQuery: "token=not-a-jwt"}
	_, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestE2EInviteDelivered(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("Skipping integration test: set INTEGRATION env var to run")
	}

	suffix := uuid.New().String()[:8]
	host := dial(t, "it-host-"+suffix)
	guest := dial(t, "it-guest-"+suffix)
	host.waitFor("connected", nil)
	guest.waitFor("connected", nil)

	host.send("joinGame", map[string]string{
		"mode":           "medium",
		"expectedPlayer": guest.login,
	})

	var invite map[string]string
	guest.waitFor("gameInvite", &invite)
	require.NotEmpty(t, invite["gameId"])
	assert.Equal(t, host.login, invite["sender"])

	guest.send("joinGame", map[string]string{"gameId": invite["gameId"]})
	var ready struct {
		GameID string `json:"gameId"`
	}
	guest.waitFor("gameReady", &ready)
	assert.Equal(t, invite["gameId"], ready.GameID)
}
