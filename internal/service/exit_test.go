package service

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestExitStatusJSON(t *testing.T) {
	tests := []struct {
		name   string
		status ExitStatus
		want   string
	}{
		{
			name:   "code",
			status: exitedWithCode("cat", 0),
			want:   `{"exe":"cat","code":0,"signal":null,"err":null}`,
		},
		{
			name:   "signal",
			status: ExitStatus{Exe: "sleep", Signal: "SIGKILL"},
			want:   `{"exe":"sleep","code":null,"signal":"SIGKILL","err":null}`,
		},
		{
			name:   "spawn error",
			status: ExitStatus{Exe: "nope", Err: errors.New("not found")},
			want:   `{"exe":"nope","code":null,"signal":null,"err":"not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.status)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestExitStatusYAML(t *testing.T) {
	data, err := yaml.Marshal(ExitStatus{Exe: "sleep", Signal: "SIGTERM"})
	require.NoError(t, err)
	require.Equal(t, "exe: sleep\ncode: null\nsignal: SIGTERM\nerr: null\n", string(data))
}

func TestExitStatusMessages(t *testing.T) {
	require.Equal(t, "cardano-node exited with status 1", exitedWithCode("cardano-node", 1).String())
	require.Equal(t, "sleep exited with status SIGKILL", ExitStatus{Exe: "sleep", Signal: "SIGKILL"}.String())
	require.Equal(t, "x failed to start: boom", ExitStatus{Exe: "x", Err: errors.New("boom")}.String())

	require.Equal(t, "code", exitedWithCode("a", 0).Cause())
	require.Equal(t, "signal", ExitStatus{Signal: "SIGTERM"}.Cause())
	require.Equal(t, "error", ExitStatus{Err: errors.New("x")}.Cause())
	require.Equal(t, "none", ExitStatus{}.Cause())

	require.False(t, ExitStatus{Exe: "a"}.Exited())
}
