// Package config builds the immutable session configuration for a
// ping-pong run from flags, environment variables and an optional
// config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ArgumentError reports a bad or contradictory configuration, detected
// before any resource is acquired.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string {
	return "invalid configuration: " + e.Reason
}

// Config holds the session configuration. Immutable after Load.
type Config struct {
	PeerAddr     string // empty for the responder
	Port         string
	BufferSize   int
	Rounds       int
	BusyPoll     bool
	PatternFill  bool
	MirrorCopy   bool
	DirectBuffer bool
	DevicePath   string
	LogLevel     string
}

// Initiator reports whether this process connects out to a peer.
func (c *Config) Initiator() bool { return c.PeerAddr != "" }

// SetupFlags registers the benchmark flags on the given flag set.
func SetupFlags(fs *pflag.FlagSet) {
	fs.String("port", "12345", "Port for connection establishment")
	fs.String("size", "4KiB", "Transfer buffer size (accepts B/KiB/MiB/GiB suffixes)")
	fs.Int("rounds", 16, "Number of ping-pong rounds")
	fs.Bool("busy-poll", false, "Spin on the buffer contents as a data-visibility proxy (expects the peer to pattern-fill)")
	fs.Bool("pattern-fill", false, "Overwrite the buffer with a per-half-round byte value before each send")
	fs.Bool("mirror-copy", false, "Shadow transferred data into the device-backed region after each completion")
	fs.Bool("direct-buffer", false, "Use a mapping of the device resource as the transfer buffer")
	fs.String("device-path", "", "Device resource to map for mirror-copy or direct-buffer modes")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("config", "", "Path to config file")
	fs.Bool("version", false, "Print version and exit")
	fs.Bool("create-config", false, "Write a default config file and exit")
	fs.String("config-output", "pingpong.yaml", "Where --create-config writes the default config")
}

// Load reads the configuration from the parsed flag set, environment
// variables (PINGPONG_ prefix) and an optional config file. The single
// positional argument, when present, is the peer address and makes this
// process the initiator. Setup blocks forever by design: there are no
// timeout knobs because the benchmark assumes a healthy fabric.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if fs.NArg() > 1 {
		return nil, &ArgumentError{Reason: fmt.Sprintf("expected at most one positional argument (peer address), got %d", fs.NArg())}
	}

	v := viper.New()

	v.SetDefault("port", "12345")
	v.SetDefault("size", "4KiB")
	v.SetDefault("rounds", 16)
	v.SetDefault("busy_poll", false)
	v.SetDefault("pattern_fill", false)
	v.SetDefault("mirror_copy", false)
	v.SetDefault("direct_buffer", false)
	v.SetDefault("device_path", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("PINGPONG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flagName, key := range map[string]string{
		"port":          "port",
		"size":          "size",
		"rounds":        "rounds",
		"busy-poll":     "busy_poll",
		"pattern-fill":  "pattern_fill",
		"mirror-copy":   "mirror_copy",
		"direct-buffer": "direct_buffer",
		"device-path":   "device_path",
		"log-level":     "log_level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", flagName, err)
		}
	}

	if configPath, _ := fs.GetString("config"); configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pingpong")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.pingpong")
		v.AddConfigPath("/etc/pingpong")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, anything else is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	size, err := ParseSize(v.GetString("size"))
	if err != nil {
		return nil, &ArgumentError{Reason: err.Error()}
	}

	cfg := &Config{
		PeerAddr:     fs.Arg(0),
		Port:         v.GetString("port"),
		BufferSize:   size,
		Rounds:       v.GetInt("rounds"),
		BusyPoll:     v.GetBool("busy_poll"),
		PatternFill:  v.GetBool("pattern_fill"),
		MirrorCopy:   v.GetBool("mirror_copy"),
		DirectBuffer: v.GetBool("direct_buffer"),
		DevicePath:   v.GetString("device_path"),
		LogLevel:     v.GetString("log_level"),
	}

	return cfg, nil
}

// Validate rejects contradictory configurations before any resource is
// acquired.
func (c *Config) Validate() error {
	if c.BufferSize < 1 {
		return &ArgumentError{Reason: fmt.Sprintf("buffer size must be at least 1 byte, got %d", c.BufferSize)}
	}
	if c.Rounds < 1 {
		return &ArgumentError{Reason: fmt.Sprintf("round count must be at least 1, got %d", c.Rounds)}
	}
	if c.MirrorCopy && c.DirectBuffer {
		return &ArgumentError{Reason: "mirror-copy and direct-buffer modes are mutually exclusive"}
	}
	if (c.MirrorCopy || c.DirectBuffer) && c.DevicePath == "" {
		return &ArgumentError{Reason: "mirror-copy and direct-buffer modes require a device path"}
	}
	if c.BusyPoll && !c.PatternFill {
		// The spin target is the pattern byte, which only the peer's
		// pattern fill produces. The flags are negotiated by convention
		// between the two processes, so this is not rejected here.
		log.Warn().Msg("busy-poll enabled without pattern-fill; the spin only terminates if the peer pattern-fills")
	}
	return nil
}

// ParseSize parses a byte count with an optional suffix. Single-letter
// and IEC suffixes (K, KiB, M, MiB, ...) are powers of 1024; SI forms
// (kB, MB, ...) are powers of 1000.
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	i := len(s)
	for i > 0 {
		ch := s[i-1]
		if ch >= '0' && ch <= '9' {
			break
		}
		i--
	}
	digits, suffix := s[:i], strings.ToLower(strings.TrimSpace(s[i:]))

	n, err := strconv.ParseUint(digits, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	var mult uint64
	switch suffix {
	case "", "b":
		mult = 1
	case "k", "kib":
		mult = 1 << 10
	case "m", "mib":
		mult = 1 << 20
	case "g", "gib":
		mult = 1 << 30
	case "kb":
		mult = 1000
	case "mb":
		mult = 1000 * 1000
	case "gb":
		mult = 1000 * 1000 * 1000
	default:
		return 0, fmt.Errorf("unknown size suffix %q", s[i:])
	}

	total := n * mult
	if n != 0 && total/n != mult || total > uint64(1)<<62 {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return int(total), nil
}

// WriteDefaultConfig writes a commented default configuration file.
func WriteDefaultConfig(path string) error {
	configContent := `# RDMA ping-pong benchmark configuration
port: "12345"
size: "4KiB" # transfer buffer size, B/KiB/MiB/GiB suffixes
rounds: 16
busy_poll: false # spin on buffer contents as a data-visibility proxy
pattern_fill: false # per-half-round byte pattern before each send
mirror_copy: false # shadow data into the device-backed region
direct_buffer: false # use a device mapping as the transfer buffer
device_path: "" # required by mirror_copy and direct_buffer
log_level: "info" # debug, info, warn, error
`

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
