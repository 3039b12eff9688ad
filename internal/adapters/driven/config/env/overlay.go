// Package env layers environment variables and command-line flags over a
// persistent config store. Overrides are read-only: writes go to the
// underlying store, so a MENTIONS_* variable never ends up in config.toml.
package env

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/custodia-labs/mentions/internal/core/ports/driven"
)

// Prefix is the environment variable prefix. The key "llm.api_key" is
// read from MENTIONS_LLM_API_KEY.
const Prefix = "MENTIONS"

// Ensure Overlay implements the interface.
var _ driven.ConfigStore = (*Overlay)(nil)

// Overlay is a driven.ConfigStore that prefers values set in viper.
type Overlay struct {
	base driven.ConfigStore
	v    *viper.Viper
}

// NewViper returns a viper instance reading MENTIONS_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(Prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// NewOverlay wraps base. A nil v uses NewViper.
func NewOverlay(base driven.ConfigStore, v *viper.Viper) *Overlay {
	if v == nil {
		v = NewViper()
	}
	return &Overlay{base: base, v: v}
}

// Get retrieves a configuration value by key.
func (o *Overlay) Get(key string) (any, bool) {
	if o.v.IsSet(key) {
		return o.v.Get(key), true
	}
	return o.base.Get(key)
}

// GetString retrieves a string configuration value.
func (o *Overlay) GetString(key string) string {
	if o.v.IsSet(key) {
		return o.v.GetString(key)
	}
	return o.base.GetString(key)
}

// GetInt retrieves an integer configuration value.
func (o *Overlay) GetInt(key string) int {
	if o.v.IsSet(key) {
		return o.v.GetInt(key)
	}
	return o.base.GetInt(key)
}

// GetFloat retrieves a numeric configuration value.
func (o *Overlay) GetFloat(key string) float64 {
	if o.v.IsSet(key) {
		return o.v.GetFloat64(key)
	}
	return o.base.GetFloat(key)
}

// GetBool retrieves a boolean configuration value.
func (o *Overlay) GetBool(key string) bool {
	if o.v.IsSet(key) {
		return o.v.GetBool(key)
	}
	return o.base.GetBool(key)
}

// GetStringSlice retrieves a string slice configuration value.
func (o *Overlay) GetStringSlice(key string) []string {
	if o.v.IsSet(key) {
		return o.v.GetStringSlice(key)
	}
	return o.base.GetStringSlice(key)
}

// Set stores a value in the underlying store.
func (o *Overlay) Set(key string, value any) error {
	return o.base.Set(key, value)
}

// Save persists the underlying store.
func (o *Overlay) Save() error {
	return o.base.Save()
}

// Load reloads the underlying store.
func (o *Overlay) Load() error {
	return o.base.Load()
}

// Path returns the underlying configuration file path.
func (o *Overlay) Path() string {
	return o.base.Path()
}

// Overridden reports whether key is currently set by the environment or a flag.
func (o *Overlay) Overridden(key string) bool {
	return o.v.IsSet(key)
}
