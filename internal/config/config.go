// Package config resolves and validates the CLI-facing parameters of a
// flash session before any port is opened.
package config

import (
	"os"

	"stm8flash/internal/bslerr"
)

// DeviceProfile parameterises the two constants that differ across STM8
// families: the option-byte patch address/value and the vendor RAM routine.
type DeviceProfile struct {
	Name            string
	OptionByteAddr  uint32
	OptionByteValue []byte
	RAMRoutine      string // S19 text of the vendor erase/write routine; base address comes from its own records
}

// STM8SDefault is the profile matching the tested STM8S family: option
// bytes at 0x487E, RAM routine linked at the address the vendor blob
// declares in its own S19 records.
func STM8SDefault(ramRoutineS19 string) DeviceProfile {
	return DeviceProfile{
		Name:            "stm8s",
		OptionByteAddr:  0x487E,
		OptionByteValue: []byte{0x55, 0xAA},
		RAMRoutine:      ramRoutineS19,
	}
}

// Config is the fully-resolved, validated input to a session.
type Config struct {
	Port           string
	Baud           int
	BootstrapBaud  int
	HexFile        string
	Erase          bool
	Verify         bool
	SkipZeroSlices bool
	Profile        DeviceProfile
	LogLevel       string
}

// Default returns the baseline configuration: bootstrap at 9600, session
// baud at 230400, no erase/verify by default.
func Default() Config {
	return Config{
		Baud:           230400,
		BootstrapBaud:  9600,
		SkipZeroSlices: true,
		LogLevel:       "info",
	}
}

// Validate rejects a Config before any port is opened: an empty port name, a
// non-positive session or bootstrap baud rate, a hex file path that os.Stat
// cannot find, or a profile with no option-byte address configured. Read
// permission on the hex file is not checked here.
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return &bslerr.ConfigError{Field: "port", Detail: "must not be empty"}
	}
	if cfg.Baud <= 0 {
		return &bslerr.ConfigError{Field: "baud", Detail: "must be positive"}
	}
	if cfg.BootstrapBaud <= 0 {
		return &bslerr.ConfigError{Field: "bootstrap-baud", Detail: "must be positive"}
	}
	if cfg.HexFile != "" {
		if _, err := os.Stat(cfg.HexFile); err != nil {
			return &bslerr.ConfigError{Field: "hex-file", Detail: err.Error()}
		}
	}
	if cfg.Profile.OptionByteAddr == 0 {
		return &bslerr.ConfigError{Field: "profile", Detail: "option byte address must be configured"}
	}
	return nil
}
