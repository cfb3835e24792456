package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pifleet/wifibridge/internal/domain"
	"github.com/pifleet/wifibridge/internal/execx"
)

func TestListenerServesSequentialSessions(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := execx.NewScriptRunner()
	stubConfirmedLink(s, domain.DefaultProfileName, "HomeNet", "192.168.1.50")

	results := make(chan domain.SessionResult, 4)
	l := NewListener("", newTestHandler(s), func(res domain.SessionResult) {
		results <- res
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- l.Serve(ctx, ln) }()

	exchange := func(request string) string {
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

		_, err = conn.Write([]byte(request))
		require.NoError(t, err)

		buf := make([]byte, domain.MaxPacketSize)
		n, err := conn.Read(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}

	assert.Equal(t, domain.RespSuccess, exchange("SET_WIFI,HomeNet,secret123"))
	assert.Equal(t, domain.RespInvalidRequest, exchange("NOT_A_COMMAND"))

	first := <-results
	second := <-results
	assert.Equal(t, domain.OutcomeSuccess, first.Outcome.Code)
	assert.Equal(t, domain.OutcomeInvalidRequest, second.Outcome.Code)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}

func TestListenerRunFailsOnUnusableAddress(t *testing.T) {
	s := execx.NewScriptRunner()
	l := NewListener("256.256.256.256:0", newTestHandler(s), nil, testLogger())

	err := l.Run(context.Background())
	require.Error(t, err)
}
