// Package cliconfig loads the optional per-tool YAML config file shared by
// cmd/linker and cmd/emu: .raluvm.yaml in the working directory,
// falling back to $HOME, wiring viper the same way as any other cobra
// root command (AutomaticEnv plus a best-effort ReadInConfig).
package cliconfig

import (
	"os"

	"github.com/spf13/viper"
)

// Config holds the handful of defaults a config file can set. CLI flags
// always take priority; a Config field is only consulted when its flag
// was left at its zero value.
type Config struct {
	// DebuggerColor toggles color output in emu's interactive debugger.
	DebuggerColor bool `mapstructure:"debugger_color"`
	// DefaultPlaceFile is the linker's -place-file path to use when the
	// command line doesn't supply one.
	DefaultPlaceFile string `mapstructure:"default_place_file"`
}

// Load reads .raluvm.yaml from the working directory or $HOME, in that
// order, returning defaults (DebuggerColor true, no placement file) if
// neither is present. A malformed config file that IS present is an error;
// mirrors the original tools' "don't guess, fail loudly" error posture.
func Load() (Config, error) {
	cfg := Config{DebuggerColor: true}

	v := viper.New()
	v.SetConfigName(".raluvm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.SetDefault("debugger_color", true)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return cfg, nil
		}
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
