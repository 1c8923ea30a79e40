package launcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/walletstack/cardano-launcher/internal/service"
)

func code(n int) *int { return &n }

func TestExitStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		status ExitStatus
		want   int
	}{
		{
			name:   "clean exit",
			status: ExitStatus{Node: service.ExitStatus{Exe: "n", Code: code(0)}, Wallet: service.ExitStatus{Exe: "w", Code: code(0)}},
			want:   0,
		},
		{
			name: "requested stop with signals",
			status: ExitStatus{
				Node:      service.ExitStatus{Exe: "n", Signal: "SIGTERM"},
				Wallet:    service.ExitStatus{Exe: "w", Signal: "SIGKILL"},
				Requested: true,
			},
			want: 0,
		},
		{
			name:   "unexpected signal",
			status: ExitStatus{Node: service.ExitStatus{Exe: "n", Signal: "SIGKILL"}},
			want:   1,
		},
		{
			name:   "nonzero code",
			status: ExitStatus{Node: service.ExitStatus{Exe: "n", Code: code(2)}, Requested: true},
			want:   1,
		},
		{
			name:   "spawn error",
			status: ExitStatus{Wallet: service.ExitStatus{Exe: "w", Err: errors.New("missing")}, Requested: true},
			want:   1,
		},
		{
			name:   "never started",
			status: ExitStatus{Node: service.ExitStatus{Exe: "n"}, Wallet: service.ExitStatus{Exe: "w"}},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.status.Code())
		})
	}
}

func TestStartErrorMessage(t *testing.T) {
	err := &StartError{Status: ExitStatus{
		Wallet: service.ExitStatus{Exe: "cardano-wallet", Signal: "SIGTERM"},
		Node:   service.ExitStatus{Exe: "cardano-node", Code: code(1)},
	}}
	require.Equal(t, "cardano-node exited with status 1\ncardano-wallet exited with status SIGTERM", err.Error())

	cause := errors.New("probe failed")
	bare := &StartError{Cause: cause}
	require.Equal(t, "launcher did not start: probe failed", bare.Error())
	require.ErrorIs(t, bare, cause)
}

func TestAPIInfoURL(t *testing.T) {
	api := NewAPIInfo(8090)
	require.Equal(t, "http://127.0.0.1:8090/v2/", api.BaseURL)
	require.Equal(t, "http://127.0.0.1:8090/v2/network/information", api.URL("/network/information"))
	require.Equal(t, "http://127.0.0.1:8090/v2/wallets", api.URL("wallets"))
}
