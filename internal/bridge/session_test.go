package bridge

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/execx"
	"github.com/pifleet/wifibridge/internal/netman"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(s *execx.ScriptRunner) *Handler {
	logger := testLogger()

	mgr := netman.NewManager(netman.Config{Interface: "wlan0"}, s, logger)
	mgr.SetSleep(func(time.Duration) {})

	poller := netman.NewPoller(netman.PollerConfig{Interface: "wlan0"}, s, logger)
	cur := time.Unix(1000, 0)
	poller.SetClock(
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)

	return NewHandler(HandlerConfig{}, mgr, poller, logger)
}

func stubConfirmedLink(s *execx.ScriptRunner, profile, ssid, ip string) {
	s.Stub("nmcli -t -f DEVICE,STATE device status", "wlan0:connected")
	s.Stub("nmcli -t -f NAME,DEVICE connection show --active", profile+":wlan0")
	s.Stub("nmcli -t -f active,ssid device wifi list", "yes:"+ssid)
	s.Stub("ip -4 addr show wlan0", "    inet "+ip+"/24 scope global wlan0")
}

// runSession drives one provisioning session over an in-memory pipe and
// returns the wire response alongside the handler's session result.
func runSession(t *testing.T, h *Handler, request string) (string, domain.SessionResult) {
	t.Helper()

	server, client := net.Pipe()
	defer client.Close()

	results := make(chan domain.SessionResult, 1)
	go func() {
		defer server.Close()
		results <- h.Handle(context.Background(), server)
	}()

	require.NoError(t, client.SetDeadline(time.Now().Add(5*time.Second)))
	_, err := client.Write([]byte(request))
	require.NoError(t, err)

	buf := make([]byte, domain.MaxPacketSize)
	n, err := client.Read(buf)
	require.NoError(t, err)

	select {
	case res := <-results:
		return string(buf[:n]), res
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
		return "", domain.SessionResult{}
	}
}

func TestSessionSuccess(t *testing.T) {
	s := execx.NewScriptRunner()
	stubConfirmedLink(s, domain.DefaultProfileName, "HomeNet", "192.168.1.50")

	resp, res := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,secret123")

	assert.Equal(t, domain.RespSuccess, resp)
	assert.Equal(t, domain.OutcomeSuccess, res.Outcome.Code)
	assert.Equal(t, "HomeNet", res.Outcome.SSID)
	assert.Equal(t, domain.DefaultProfileName, res.Outcome.Profile)
	assert.Equal(t, "192.168.1.50", res.Outcome.IPAddress)
	assert.NotEmpty(t, res.SessionID)

	adds := s.CallsMatching("nmcli connection add")
	require.Len(t, adds, 1)
	assert.Contains(t, adds[0], domain.DefaultProfileName)
	assert.Contains(t, adds[0], "secret123")
}

func TestSessionExplicitProfile(t *testing.T) {
	s := execx.NewScriptRunner()
	stubConfirmedLink(s, "GarageNet", "HomeNet", "10.0.0.7")

	resp, res := runSession(t, newTestHandler(s), "SET_WIFI_PROFILE,HomeNet,secret123,GarageNet")

	assert.Equal(t, domain.RespSuccess, resp)
	assert.Equal(t, "GarageNet", res.Outcome.Profile)

	adds := s.CallsMatching("nmcli connection add")
	require.Len(t, adds, 1)
	assert.Contains(t, adds[0], "GarageNet")
}

func TestSessionPasswordWithCommas(t *testing.T) {
	s := execx.NewScriptRunner()
	stubConfirmedLink(s, domain.DefaultProfileName, "HomeNet", "192.168.1.50")

	resp, _ := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,pa,ss,word")

	assert.Equal(t, domain.RespSuccess, resp)
	adds := s.CallsMatching("nmcli connection add")
	require.Len(t, adds, 1)
	assert.Contains(t, adds[0], "pa,ss,word")
}

func TestSessionBadPassword(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Fail("nmcli connection up",
		"Error: Connection activation failed: Secrets were required, but not provided.", 4)

	resp, res := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,wrongpass")

	assert.Equal(t, domain.RespBadPassword, resp)
	assert.Equal(t, domain.OutcomeBadPassword, res.Outcome.Code)
	// Confirmation polling never starts once activation is rejected.
	assert.Empty(t, s.CallsMatching("nmcli -t -f DEVICE,STATE device status"))
}

func TestSessionActivationFailed(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Fail("nmcli connection up", "Error: unknown device 'wlan0'.", 4)

	resp, res := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,secret123")

	assert.Equal(t, domain.RespActivationFailed, resp)
	assert.Equal(t, domain.OutcomeActivationFailed, res.Outcome.Code)
}

func TestSessionProfileWriteFailed(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Fail("nmcli connection add", "Error: failed to add connection", 1)

	resp, res := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,secret123")

	assert.Equal(t, domain.RespProfileWriteFailed, resp)
	assert.Equal(t, domain.OutcomeProfileWriteFailed, res.Outcome.Code)
	assert.Empty(t, s.CallsMatching("nmcli connection up"))
}

func TestSessionTimeout(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Stub("nmcli -t -f DEVICE,STATE device status",
		"wlan0:connecting (getting IP configuration)")

	resp, res := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,secret123")

	assert.Equal(t, domain.RespTimeout, resp)
	assert.Equal(t, domain.OutcomeTimeout, res.Outcome.Code)
}

func TestSessionInvalidRequest(t *testing.T) {
	cases := []struct {
		name    string
		request string
	}{
		{"unknown command", "REBOOT,now"},
		{"missing password", "SET_WIFI,HomeNet"},
		{"empty ssid", "SET_WIFI,,secret123"},
		{"garbage", "hello world"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := execx.NewScriptRunner()
			resp, res := runSession(t, newTestHandler(s), tc.request)

			assert.Equal(t, domain.RespInvalidRequest, resp)
			assert.Equal(t, domain.OutcomeInvalidRequest, res.Outcome.Code)
			assert.Empty(t, s.Calls())
		})
	}
}

func TestSessionTrimsRequestWhitespace(t *testing.T) {
	s := execx.NewScriptRunner()
	stubConfirmedLink(s, domain.DefaultProfileName, "HomeNet", "192.168.1.50")

	resp, _ := runSession(t, newTestHandler(s), "SET_WIFI,HomeNet,secret123\r\n")
	assert.Equal(t, domain.RespSuccess, resp)
}
