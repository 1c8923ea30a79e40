// Package config provides a configurable config.Hook for command tests.
package config

import (
	"time"

	"github.com/spf13/pflag"

	cfg "github.com/walletstack/cardano-launcher/internal/config"
)

type MockConfigHook struct {
	GetStringMock      func(key string) string
	GetBoolMock        func(key string) bool
	GetIntMock         func(key string) int
	GetIntOrElseMock   func(key string, orElse int) int
	GetDurationMock    func(key string) time.Duration
	SaveMock           func() error
	BindFlagMock       func(string, *pflag.Flag) error
	GetProfileMock     func() string
	GetStringSliceMock func(key string) []string
	SetStringMock      func(k string, v string)
	SetMock            func(k string, v any)
	GetMock            func(k string) any
	GetPathMock        func() string
}

func (m *MockConfigHook) Save() error {
	return m.SaveMock()
}

func (m *MockConfigHook) GetString(key string) string {
	if m.GetStringMock != nil {
		return m.GetStringMock(key)
	}
	return ""
}

func (m *MockConfigHook) GetBool(key string) bool {
	if m.GetBoolMock != nil {
		return m.GetBoolMock(key)
	}
	return false
}

func (m *MockConfigHook) GetInt(key string) int {
	return m.GetIntMock(key)
}

func (m *MockConfigHook) GetIntOrElse(key string, orElse int) int {
	if m.GetIntOrElseMock != nil {
		return m.GetIntOrElseMock(key, orElse)
	}
	return orElse
}

func (m *MockConfigHook) GetDuration(key string) time.Duration {
	if m.GetDurationMock != nil {
		return m.GetDurationMock(key)
	}
	return 0
}

func (m *MockConfigHook) BindFlag(configPath string, f *pflag.Flag) error {
	if m.BindFlagMock != nil {
		return m.BindFlagMock(configPath, f)
	}
	return nil
}

func (m *MockConfigHook) GetProfile() string {
	if m.GetProfileMock != nil {
		return m.GetProfileMock()
	}
	return "default"
}

func (m *MockConfigHook) GetStringSlice(key string) []string {
	return m.GetStringSliceMock(key)
}

func (m *MockConfigHook) SetString(k string, v string) {
	m.SetStringMock(k, v)
}

func (m *MockConfigHook) Set(k string, v any) {
	m.SetMock(k, v)
}

func (m *MockConfigHook) Get(k string) any {
	return m.GetMock(k)
}

func (m *MockConfigHook) GetPath() string {
	return m.GetPathMock()
}

var _ cfg.Hook = (*MockConfigHook)(nil)
