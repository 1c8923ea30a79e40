package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
)

func TestExecutionErrorCode(t *testing.T) {
	require.Equal(t, 1, (&ExecutionError{Err: errors.New("x")}).Code())
	require.Equal(t, 3, (&ExecutionError{Err: errors.New("x"), ExitCode: 3}).Code())
}

func TestPrepareExecutionError(t *testing.T) {
	c := &cobra.Command{Use: "start"}
	base := errors.New("boom")

	err := PrepareExecutionError("failed", base, c, "key", "value")
	require.Equal(t, "failed", err.Msg)
	require.ErrorIs(t, err, base)
	require.Equal(t, []any{"key", "value"}, err.Attrs)
	require.True(t, c.SilenceUsage)
	require.True(t, c.SilenceErrors)

	require.Nil(t, PrepareExecutionErrorFromErr(nil, nil))
	fromErr := PrepareExecutionErrorFromErr(nil, base)
	require.Equal(t, "boom", fromErr.Msg)

	msgErr := PrepareExecutionErrorMsg(nil, "")
	require.EqualError(t, msgErr, "an unknown error occurred")
}

func TestConfigurationErrorUnwrap(t *testing.T) {
	base := errors.New("bad flag")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, error(&ConfigurationError{Err: base}), &cfgErr)
	require.ErrorIs(t, cfgErr, base)
}

func TestCommandHelperMissingContextValues(t *testing.T) {
	c := &cobra.Command{Use: "start"}
	c.SetContext(context.Background())
	helper := BuildHelper(c, []string{"a"})

	require.Equal(t, []string{"a"}, helper.GetArgs())
	require.Same(t, c, helper.GetCmd())

	_, err := helper.GetLogger()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	_, err = helper.GetBuildInfo()
	require.ErrorAs(t, err, &cfgErr)

	_, err = helper.GetConfig()
	require.ErrorContains(t, err, "no config found")

	format, err := helper.GetOutputFormat()
	require.Error(t, err)
	require.Equal(t, common.TEXT, format)

	require.NotNil(t, helper.GetStreams())
}

func TestCommandHelperStreamsFromContext(t *testing.T) {
	streams, _, _, _ := iostreams.NewTestIOStreams()
	c := &cobra.Command{Use: "ps"}
	c.SetContext(context.WithValue(context.Background(), iostreams.StreamsKey, streams))

	require.Same(t, streams, BuildHelper(c, nil).GetStreams())
}

func TestFlagEnum(t *testing.T) {
	e := NewEnum([]string{"json", "yaml", "text"}, "text")
	require.Equal(t, "text", e.String())
	require.NoError(t, e.Set("json"))
	require.Equal(t, "json", e.String())
	require.ErrorContains(t, e.Set("xml"), "must be one of")
	require.Equal(t, "string", e.Type())
}
