// Package config loads shalltest configuration from defaults, a config file
// and SHALLTEST_* environment variables.
package config

import (
	"github.com/LeJamon/shalltest/internal/emulator"
	"github.com/LeJamon/shalltest/internal/rpc"
	"github.com/LeJamon/shalltest/internal/storage"
	"github.com/LeJamon/shalltest/internal/storage/txlog"
)

// Config is the root configuration structure.
type Config struct {
	Emulator emulator.Config `mapstructure:"emulator"`
	Storage  storage.Config  `mapstructure:"storage"`
	TxLog    txlog.Config    `mapstructure:"txlog"`
	RPC      rpc.Config      `mapstructure:"rpc"`
	Log      LogConfig       `mapstructure:"log"`

	// path of the loaded config file, empty when none was read
	configPath string
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is "console" or "json".
	Format string `mapstructure:"format"`
}

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// EmulatorConfig returns the emulator configuration with the storage and
// transaction log sections folded in.
func (c *Config) EmulatorConfig() emulator.Config {
	cfg := c.Emulator
	cfg.Storage = c.Storage
	cfg.TxLog = c.TxLog
	return cfg
}

// ConfigPath returns the path of the file the config was read from.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// Default returns the built-in configuration.
func Default() *Config {
	emu := emulator.DefaultConfig()
	return &Config{
		Emulator: emu,
		Storage:  emu.Storage,
		TxLog:    emu.TxLog,
		RPC:      rpc.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
	}
}
