package build

// Key is the context key type for build information.
type Key struct{}

// InfoKey is used to store *Info in a command context.
var InfoKey = Key{}

// Info describes the running binary. Values are injected by the linker.
type Info struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}
