package launcher

import (
	"fmt"
	"strings"
)

// APIInfo describes how to reach the wallet API once it is ready.
type APIInfo struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Port    int    `json:"port" yaml:"port"`
}

func NewAPIInfo(port int) APIInfo {
	return APIInfo{
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d/v2/", port),
		Port:    port,
	}
}

// URL joins path onto the API base URL.
func (a APIInfo) URL(path string) string {
	return a.BaseURL + strings.TrimPrefix(path, "/")
}
