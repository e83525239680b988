// Package config loads and validates the bridge's configuration surface
// (spec.md §6): defaults, then a JSON file, then environment overrides —
// the same file→env precedence the teacher's cmd/can-server/config.go
// applies to its appConfig. A file field overrides the default only when it
// is present in the JSON; a set, non-empty BRIDGE_* variable overrides
// unconditionally.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wsusbcan/bridge/internal/wire"
)

// Config is the validated runtime configuration for one bridge instance.
type Config struct {
	SocketCANInterface     string          `json:"socketcan_interface"`
	USBDevicePath          string          `json:"usb_device_path"`
	SerialBaudRate         wire.SerialBaud `json:"serial_baud_rate"`
	CANBaudRate            wire.CANBaud    `json:"can_baud_rate"`
	CANMode                wire.CANMode    `json:"can_mode"`
	AutoRetransmit         bool            `json:"auto_retransmit"`
	FilterID               uint32          `json:"filter_id"`
	FilterMask             uint32          `json:"filter_mask"`
	USBReadTimeoutMs       uint32          `json:"usb_read_timeout_ms"`
	SocketCANReadTimeoutMs uint32          `json:"socketcan_read_timeout_ms"`
}

// Default returns the spec-mandated defaults.
func Default() Config {
	return Config{
		SocketCANInterface:     "vcan0",
		USBDevicePath:          "/dev/ttyUSB0",
		SerialBaudRate:         wire.SerialBaud2M,
		CANBaudRate:            wire.CANBaud1M,
		CANMode:                wire.CANModeNormal,
		AutoRetransmit:         true,
		FilterID:               0,
		FilterMask:             0,
		USBReadTimeoutMs:       100,
		SocketCANReadTimeoutMs: 100,
	}
}

// rawConfig mirrors the JSON schema using loosely-typed fields so can_mode
// and baud rates can be parsed from their human-readable string/number forms
// before being resolved into wire enums.
type rawConfig struct {
	SocketCANInterface     *string `json:"socketcan_interface"`
	USBDevicePath          *string `json:"usb_device_path"`
	SerialBaudRate         *uint32 `json:"serial_baud_rate"`
	CANBaudRate            *string `json:"can_baud_rate"`
	CANMode                *string `json:"can_mode"`
	AutoRetransmit         *bool   `json:"auto_retransmit"`
	FilterID               *uint32 `json:"filter_id"`
	FilterMask             *uint32 `json:"filter_mask"`
	USBReadTimeoutMs       *uint32 `json:"usb_read_timeout_ms"`
	SocketCANReadTimeoutMs *uint32 `json:"socketcan_read_timeout_ms"`
}

// Load builds a Config starting from Default, applying path (if non-empty)
// as a JSON overlay, then environment variables, then validates. Environment
// variables take precedence over the file, which takes precedence over
// defaults, matching spec.md §6.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var raw rawConfig
		if err := json.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if err := applyRaw(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyRaw(c *Config, raw rawConfig) error {
	if raw.SocketCANInterface != nil {
		c.SocketCANInterface = *raw.SocketCANInterface
	}
	if raw.USBDevicePath != nil {
		c.USBDevicePath = *raw.USBDevicePath
	}
	if raw.SerialBaudRate != nil {
		c.SerialBaudRate = wire.SerialBaud(*raw.SerialBaudRate)
	}
	if raw.CANBaudRate != nil {
		baud, err := parseCANBaud(*raw.CANBaudRate)
		if err != nil {
			return err
		}
		c.CANBaudRate = baud
	}
	if raw.CANMode != nil {
		mode, err := ParseCANMode(*raw.CANMode)
		if err != nil {
			return err
		}
		c.CANMode = mode
	}
	if raw.AutoRetransmit != nil {
		c.AutoRetransmit = *raw.AutoRetransmit
	}
	if raw.FilterID != nil {
		c.FilterID = *raw.FilterID
	}
	if raw.FilterMask != nil {
		c.FilterMask = *raw.FilterMask
	}
	if raw.USBReadTimeoutMs != nil {
		c.USBReadTimeoutMs = *raw.USBReadTimeoutMs
	}
	if raw.SocketCANReadTimeoutMs != nil {
		c.SocketCANReadTimeoutMs = *raw.SocketCANReadTimeoutMs
	}
	return nil
}

// ParseCANMode accepts the spec's case-insensitive, dash/underscore
// equivalent string forms: normal|loopback|silent|loopback_silent.
func ParseCANMode(s string) (wire.CANMode, error) {
	norm := strings.ReplaceAll(strings.ToLower(s), "-", "_")
	switch norm {
	case "normal":
		return wire.CANModeNormal, nil
	case "loopback":
		return wire.CANModeLoopback, nil
	case "silent":
		return wire.CANModeSilent, nil
	case "loopback_silent":
		return wire.CANModeLoopbackSilent, nil
	default:
		return 0, fmt.Errorf("invalid can_mode: %q", s)
	}
}

func parseCANBaud(s string) (wire.CANBaud, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch norm {
	case "1m", "1mbps", "speed_1m":
		return wire.CANBaud1M, nil
	case "800k", "800kbps":
		return wire.CANBaud800K, nil
	case "500k", "500kbps":
		return wire.CANBaud500K, nil
	case "400k", "400kbps":
		return wire.CANBaud400K, nil
	case "250k", "250kbps":
		return wire.CANBaud250K, nil
	case "200k", "200kbps":
		return wire.CANBaud200K, nil
	case "125k", "125kbps":
		return wire.CANBaud125K, nil
	case "100k", "100kbps":
		return wire.CANBaud100K, nil
	case "50k", "50kbps":
		return wire.CANBaud50K, nil
	case "20k", "20kbps":
		return wire.CANBaud20K, nil
	case "10k", "10kbps":
		return wire.CANBaud10K, nil
	case "5k", "5kbps":
		return wire.CANBaud5K, nil
	default:
		return 0, fmt.Errorf("invalid can_baud_rate: %q", s)
	}
}

// applyEnv maps BRIDGE_* environment variables onto cfg, each one
// overriding whatever Load has accumulated so far (defaults or file).
func applyEnv(c *Config) error {
	var firstErr error
	setErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	if v, ok := lookupTrim("BRIDGE_SOCKETCAN_INTERFACE"); ok {
		c.SocketCANInterface = v
	}
	if v, ok := lookupTrim("BRIDGE_USB_DEVICE_PATH"); ok {
		c.USBDevicePath = v
	}
	if v, ok := lookupTrim("BRIDGE_SERIAL_BAUD_RATE"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			setErr(fmt.Errorf("invalid BRIDGE_SERIAL_BAUD_RATE: %w", err))
		} else {
			c.SerialBaudRate = wire.SerialBaud(n)
		}
	}
	if v, ok := lookupTrim("BRIDGE_CAN_BAUD_RATE"); ok {
		baud, err := parseCANBaud(v)
		if err != nil {
			setErr(err)
		} else {
			c.CANBaudRate = baud
		}
	}
	if v, ok := lookupTrim("BRIDGE_CAN_MODE"); ok {
		mode, err := ParseCANMode(v)
		if err != nil {
			setErr(err)
		} else {
			c.CANMode = mode
		}
	}
	if v, ok := lookupTrim("BRIDGE_AUTO_RETRANSMIT"); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			c.AutoRetransmit = true
		case "0", "false", "no", "off":
			c.AutoRetransmit = false
		default:
			setErr(fmt.Errorf("invalid BRIDGE_AUTO_RETRANSMIT: %q", v))
		}
	}
	if v, ok := lookupTrim("BRIDGE_FILTER_ID"); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			setErr(fmt.Errorf("invalid BRIDGE_FILTER_ID: %w", err))
		} else {
			c.FilterID = uint32(n)
		}
	}
	if v, ok := lookupTrim("BRIDGE_FILTER_MASK"); ok {
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			setErr(fmt.Errorf("invalid BRIDGE_FILTER_MASK: %w", err))
		} else {
			c.FilterMask = uint32(n)
		}
	}
	if v, ok := lookupTrim("BRIDGE_USB_READ_TIMEOUT_MS"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			setErr(fmt.Errorf("invalid BRIDGE_USB_READ_TIMEOUT_MS: %w", err))
		} else {
			c.USBReadTimeoutMs = uint32(n)
		}
	}
	if v, ok := lookupTrim("BRIDGE_SOCKETCAN_READ_TIMEOUT_MS"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			setErr(fmt.Errorf("invalid BRIDGE_SOCKETCAN_READ_TIMEOUT_MS: %w", err))
		} else {
			c.SocketCANReadTimeoutMs = uint32(n)
		}
	}
	return firstErr
}

func lookupTrim(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Validate checks ranges and enum membership; it never touches a device.
func (c Config) Validate() error {
	if !c.SerialBaudRate.Valid() {
		return fmt.Errorf("invalid serial_baud_rate: %d", c.SerialBaudRate)
	}
	if !c.CANBaudRate.Valid() {
		return fmt.Errorf("invalid can_baud_rate: %d", c.CANBaudRate)
	}
	if !c.CANMode.Valid() {
		return fmt.Errorf("invalid can_mode: %d", c.CANMode)
	}
	if c.FilterID > 0x1FFFFFFF {
		return fmt.Errorf("filter_id does not fit in 29 bits: 0x%X", c.FilterID)
	}
	if c.FilterMask > 0x1FFFFFFF {
		return fmt.Errorf("filter_mask does not fit in 29 bits: 0x%X", c.FilterMask)
	}
	if c.USBReadTimeoutMs < 1 || c.USBReadTimeoutMs > 60000 {
		return fmt.Errorf("usb_read_timeout_ms out of range [1, 60000]: %d", c.USBReadTimeoutMs)
	}
	if c.SocketCANReadTimeoutMs < 1 || c.SocketCANReadTimeoutMs > 60000 {
		return fmt.Errorf("socketcan_read_timeout_ms out of range [1, 60000]: %d", c.SocketCANReadTimeoutMs)
	}
	return nil
}
