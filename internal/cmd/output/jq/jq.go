// Package jq filters and prints command results. Structured output goes
// through an optional gojq expression before it is formatted.
package jq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/itchyny/gojq"
	"github.com/segmentio/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	cmdpkg "github.com/walletstack/cardano-launcher/internal/cmd"
	cmdcommon "github.com/walletstack/cardano-launcher/internal/cmd/common"
	"github.com/walletstack/cardano-launcher/internal/config"
	"github.com/walletstack/cardano-launcher/internal/iostreams"
)

const (
	FlagName               = "jq"
	ColorFlagName          = "jq-color"
	ColorThemeFlagName     = "jq-color-theme"
	RawOutputFlagName      = "jq-raw-output"
	RawOutputFlagShort     = "r"
	ColorEnabledConfigPath = "jq.color"
	ColorThemeConfigPath   = "jq.theme"
	DefaultTheme           = "friendly"
)

// ColorMode controls colorized jq output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

func parseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ColorAuto:
		return ColorAuto, nil
	case ColorAlways:
		return ColorAlways, nil
	case ColorNever:
		return ColorNever, nil
	}
	return ColorAuto, fmt.Errorf("invalid color mode %q, must be one of [auto always never]", s)
}

var queryCache sync.Map

type Settings struct {
	Filter    string
	Color     ColorMode
	Theme     string
	RawOutput bool
}

func AddFlags(flags *pflag.FlagSet) {
	flags.String(FlagName, "",
		"Filter structured output with a jq expression.")

	flags.Var(
		cmdpkg.NewEnum([]string{string(ColorAuto), string(ColorAlways), string(ColorNever)}, string(ColorAuto)),
		ColorFlagName,
		fmt.Sprintf(`Colorize jq results.
- Config path: [ %s ]
- Allowed    : [ auto|always|never ]`, ColorEnabledConfigPath),
	)

	flags.String(ColorThemeFlagName, DefaultTheme,
		fmt.Sprintf(`Chroma style used for colorized jq results.
- Config path: [ %s ]`, ColorThemeConfigPath))

	flags.BoolP(RawOutputFlagName, RawOutputFlagShort, false,
		"Print string jq results without JSON quotes.")
}

// BindFlags binds the color flags to their configuration paths.
func BindFlags(cfg config.Hook, flags *pflag.FlagSet) error {
	if cfg == nil || flags == nil {
		return nil
	}
	for flag, path := range map[string]string{
		ColorFlagName:      ColorEnabledConfigPath,
		ColorThemeFlagName: ColorThemeConfigPath,
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := cfg.BindFlag(path, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveSettings reads the jq flags of command, falling back to cfg for the
// color settings.
func ResolveSettings(command *cobra.Command, cfg config.Hook) (Settings, error) {
	settings := Settings{Color: ColorAuto, Theme: DefaultTheme}
	if command == nil || command.Flags().Lookup(FlagName) == nil {
		return settings, nil
	}
	flags := command.Flags()

	filter, err := flags.GetString(FlagName)
	if err != nil {
		return Settings{}, err
	}
	filter = strings.TrimSpace(filter)
	if flags.Changed(FlagName) && filter == "" {
		filter = "."
	}
	settings.Filter = filter

	if settings.RawOutput, err = flags.GetBool(RawOutputFlagName); err != nil {
		return Settings{}, err
	}

	color := flags.Lookup(ColorFlagName).Value.String()
	theme := flags.Lookup(ColorThemeFlagName).Value.String()
	if cfg != nil {
		if v := cfg.GetString(ColorEnabledConfigPath); v != "" {
			color = v
		}
		if v := cfg.GetString(ColorThemeConfigPath); v != "" {
			theme = v
		}
	}
	if settings.Color, err = parseColorMode(color); err != nil {
		return Settings{}, &cmdpkg.ConfigurationError{Err: err}
	}
	if strings.TrimSpace(theme) != "" {
		settings.Theme = theme
	}
	return settings, nil
}

func (s Settings) HasFilter() bool {
	return strings.TrimSpace(s.Filter) != ""
}

// Validate rejects jq settings that the output format cannot honor.
func (s Settings) Validate(outType cmdcommon.OutputFormat) error {
	if s.RawOutput && !s.HasFilter() {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s requires --%s", RawOutputFlagName, FlagName),
		}
	}
	if s.RawOutput && outType != cmdcommon.JSON {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s is only supported with --output json", RawOutputFlagName),
		}
	}
	if s.HasFilter() && outType == cmdcommon.TEXT {
		return &cmdpkg.ConfigurationError{
			Err: fmt.Errorf("--%s is only supported with --output json or --output yaml", FlagName),
		}
	}
	return nil
}

// Print writes value to out. Text output is delegated to text; structured
// output is filtered by settings and formatted with segmentio/cli.
func Print(
	out io.Writer,
	outType cmdcommon.OutputFormat,
	settings Settings,
	value any,
	text func(io.Writer) error,
) error {
	if err := settings.Validate(outType); err != nil {
		return err
	}
	if outType == cmdcommon.TEXT && text != nil {
		return text(out)
	}

	if settings.HasFilter() {
		filtered, done, err := apply(value, outType, settings, out)
		if err != nil || done {
			return err
		}
		value = filtered
	}

	format := outType.String()
	if outType == cmdcommon.TEXT {
		format = cmdcommon.JSON.String()
	}
	printer, err := cli.Format(format, out)
	if err != nil {
		return err
	}
	defer printer.Flush()
	printer.Print(value)
	return nil
}

// Render prints value in the output format of the command behind helper,
// honoring its jq flags.
func Render(helper cmdpkg.Helper, value any, text func(io.Writer) error) error {
	outType, err := helper.GetOutputFormat()
	if err != nil {
		return err
	}
	cfg, err := helper.GetConfig()
	if err != nil {
		return err
	}
	settings, err := ResolveSettings(helper.GetCmd(), cfg)
	if err != nil {
		return err
	}
	return Print(helper.GetStreams().Out, outType, settings, value, text)
}

// apply runs the filter over value. done reports that the result has already
// been written to out.
func apply(value any, outType cmdcommon.OutputFormat, settings Settings, out io.Writer) (any, bool, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return nil, false, fmt.Errorf("encode output before applying jq filter: %w", err)
	}

	results, err := Evaluate(body, settings.Filter)
	if err != nil {
		return nil, false, err
	}

	if settings.RawOutput {
		return nil, true, writeRaw(results, out)
	}

	filtered, err := encodeResults(results)
	if err != nil {
		return nil, false, err
	}

	if outType == cmdcommon.JSON && useColor(settings.Color, out) {
		printable := Colorize(filtered, indent(filtered), settings.Theme)
		_, err := fmt.Fprintln(out, strings.TrimRight(printable, "\n"))
		return nil, true, err
	}

	var payload any
	if err := json.Unmarshal(filtered, &payload); err != nil {
		return nil, false, err
	}
	return payload, false, nil
}

// Evaluate runs filter over a JSON document and returns every result.
func Evaluate(body []byte, filter string) ([]any, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		filter = "."
	}
	if len(body) == 0 {
		return nil, errors.New("output is empty, cannot apply jq filter")
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w", err)
	}

	code, err := compile(filter)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(payload)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq filter failed: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

func compile(filter string) (*gojq.Code, error) {
	if code, ok := queryCache.Load(filter); ok {
		return code.(*gojq.Code), nil
	}
	parsed, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compile jq expression: %w", err)
	}
	queryCache.Store(filter, code)
	return code, nil
}

func encodeResults(results []any) ([]byte, error) {
	switch len(results) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(results[0])
	default:
		return json.Marshal(results)
	}
}

func writeRaw(results []any, out io.Writer) error {
	for _, result := range results {
		line, ok := result.(string)
		if !ok {
			encoded, err := json.Marshal(result)
			if err != nil {
				return err
			}
			line = string(encoded)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func indent(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

var terminalDetector = iostreams.IsTerminal

func useColor(mode ColorMode, out io.Writer) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	return terminalDetector(out)
}

// Colorize highlights formatted JSON with the named chroma style. Scalars and
// anything chroma cannot handle are returned unchanged.
func Colorize(raw []byte, formatted, theme string) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return formatted
	}

	lexer := lexers.Get("json")
	if lexer == nil {
		return formatted
	}
	iterator, err := lexer.Tokenise(nil, formatted)
	if err != nil {
		return formatted
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return formatted
	}
	style := styles.Get(theme)
	if style == nil {
		style = styles.Fallback
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return formatted
	}
	return buf.String()
}
