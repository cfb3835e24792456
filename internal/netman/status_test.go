package netman

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/execx"
)

func newTestPoller(r execx.Runner) *Poller {
	p := NewPoller(PollerConfig{Interface: "wlan0"}, r, testLogger())
	cur := time.Unix(1000, 0)
	p.SetClock(
		func() time.Time { return cur },
		func(d time.Duration) { cur = cur.Add(d) },
	)
	return p
}

func stubHealthyLink(s *execx.ScriptRunner, profile, ssid, ip string) {
	s.Stub("nmcli -t -f DEVICE,STATE device status",
		"lo:unmanaged\neth0:connected\nwlan0:connected")
	s.Stub("nmcli -t -f NAME,DEVICE connection show --active",
		"Wired connection 1:eth0\n"+profile+":wlan0")
	s.Stub("nmcli -t -f active,ssid device wifi list",
		"no:NeighborNet\nyes:"+ssid)
	s.Stub("ip -4 addr show wlan0",
		"3: wlan0: <BROADCAST,MULTICAST,UP,LOWER_UP>\n    inet "+ip+"/24 brd 192.168.1.255 scope global dynamic wlan0")
}

func TestObserveHealthyLink(t *testing.T) {
	s := execx.NewScriptRunner()
	stubHealthyLink(s, "OfficeWifi", "HomeNet", "192.168.1.50")

	st := newTestPoller(s).Observe(context.Background())

	assert.Equal(t, domain.StateConnected, st.DeviceState)
	assert.Equal(t, "OfficeWifi", st.ActiveProfile)
	assert.Equal(t, "HomeNet", st.ActiveSSID)
	assert.Equal(t, "192.168.1.50", st.IPAddress)
}

func TestObserveDisconnectedSkipsSSIDAndIP(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Stub("nmcli -t -f DEVICE,STATE device status", "wlan0:disconnected")

	st := newTestPoller(s).Observe(context.Background())

	assert.Equal(t, domain.StateDisconnected, st.DeviceState)
	assert.Empty(t, st.ActiveSSID)
	assert.Empty(t, st.IPAddress)
	assert.Empty(t, s.CallsMatching("nmcli -t -f active,ssid device wifi list"))
	assert.Empty(t, s.CallsMatching("ip -4 addr show"))
}

func TestObserveDegradesOnQueryFailure(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Fail("nmcli -t -f DEVICE,STATE device status", "nmcli is busy", 1)
	s.Fail("nmcli -t -f NAME,DEVICE connection show --active", "nmcli is busy", 1)

	st := newTestPoller(s).Observe(context.Background())

	assert.Equal(t, domain.StateUnknown, st.DeviceState)
	assert.Empty(t, st.ActiveProfile)
	assert.Empty(t, st.ActiveSSID)
	assert.Empty(t, st.IPAddress)
}

func TestObserveIgnoresOtherInterfaces(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Stub("nmcli -t -f DEVICE,STATE device status", "eth0:connected\nwlan1:connected")

	st := newTestPoller(s).Observe(context.Background())
	assert.Equal(t, domain.StateUnknown, st.DeviceState)
}

func TestWaitForConnectionConfirmsOnSecondObservation(t *testing.T) {
	s := execx.NewScriptRunner()
	s.Handle("nmcli -t -f DEVICE,STATE device status", func(call int, _ []string) (execx.Result, error) {
		if call == 0 {
			return execx.Result{Stdout: "wlan0:connecting (getting IP configuration)"}, nil
		}
		return execx.Result{Stdout: "wlan0:connected"}, nil
	})
	s.Stub("nmcli -t -f NAME,DEVICE connection show --active", "OfficeWifi:wlan0")
	s.Stub("nmcli -t -f active,ssid device wifi list", "yes:HomeNet")
	s.Stub("ip -4 addr show wlan0", "    inet 192.168.1.50/24 scope global wlan0")

	ok, ip := newTestPoller(s).WaitForConnection(context.Background(), "HomeNet", "OfficeWifi", 45*time.Second)

	require.True(t, ok)
	assert.Equal(t, "192.168.1.50", ip)
	assert.Len(t, s.CallsMatching("nmcli -t -f DEVICE,STATE device status"), 2)
}

func TestWaitForConnectionRejectsPartialMatch(t *testing.T) {
	cases := []struct {
		name    string
		profile string
		ssid    string
		ip      string
	}{
		{"wrong profile", "StaleProfile", "HomeNet", "192.168.1.50"},
		{"wrong ssid", "OfficeWifi", "NeighborNet", "192.168.1.50"},
		{"no ip", "OfficeWifi", "HomeNet", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := execx.NewScriptRunner()
			s.Stub("nmcli -t -f DEVICE,STATE device status", "wlan0:connected")
			s.Stub("nmcli -t -f NAME,DEVICE connection show --active", tc.profile+":wlan0")
			s.Stub("nmcli -t -f active,ssid device wifi list", "yes:"+tc.ssid)
			if tc.ip != "" {
				s.Stub("ip -4 addr show wlan0", "    inet "+tc.ip+"/24 scope global wlan0")
			} else {
				s.Stub("ip -4 addr show wlan0", "3: wlan0: <BROADCAST,MULTICAST,UP>")
			}

			ok, ip := newTestPoller(s).WaitForConnection(context.Background(), "HomeNet", "OfficeWifi", 9*time.Second)
			assert.False(t, ok)
			assert.Equal(t, tc.ip, ip)
		})
	}
}

func TestWaitForConnectionHonorsContext(t *testing.T) {
	s := execx.NewScriptRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, _ := newTestPoller(s).WaitForConnection(ctx, "HomeNet", "OfficeWifi", 45*time.Second)
	assert.False(t, ok)
	assert.Empty(t, s.Calls())
}
