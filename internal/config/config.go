// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/viper"
)

const (
	AppName       = "cwblocks"
	ConfigType    = "yaml"
	DefaultConfig = `# CW blocks configuration

# Audio device settings
device_index: -1        # -1 for default device (see 'cwblocks devices')
sample_rate: 48000      # Audio sample rate in Hz
channels: 1             # Captured channels, downmixed to mono
buffer_size: 512        # Frames per capture callback

# Tone detection
tone_frequency: 750     # CW tone frequency in Hz
block_size: 512         # Goertzel block size (samples per measurement)
overlap_pct: 50         # Block overlap percentage (0-99), one envelope value per hop
agc_enabled: true       # Enable automatic gain control (normalizes input levels)
agc_decay: 0.9995       # AGC peak decay factor per block (0.99-0.99999)
agc_attack: 0.1         # AGC attack rate (0.0-1.0), how fast to follow louder signals
agc_warmup_blocks: 10   # Blocks used to calibrate the AGC before decoding

# Timing
wpm: 15                 # Sending speed in words per minute (PARIS)
accuracy: 70            # Timing accuracy in percent, 100 = exact dot multiples only
flush_dots: 10          # Silence in dots appended to file input to close the last word

# Encoding
tone_amplitude: 0.8     # Peak level of generated tones (0.0-1.0)

# Publishing
mqtt_broker: ""         # e.g. tcp://localhost:1883, empty disables MQTT
mqtt_topic: "cwblocks/text"
mqtt_client_id: "cwblocks"
http_listen: ""         # e.g. :8080, empty disables the status server

# Logging
log_level: standard     # standard, debug or trace
log_file: stderr        # stderr, stdout or a file path
debug: false            # Shorthand for log_level: debug
`
)

// LogLevels lists the accepted log_level values.
var LogLevels = []string{"standard", "debug", "trace"}

// Settings holds all application configuration
type Settings struct {
	// Audio device settings
	DeviceIndex int     `mapstructure:"device_index" yaml:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels    int     `mapstructure:"channels" yaml:"channels"`
	BufferSize  int     `mapstructure:"buffer_size" yaml:"buffer_size"`

	// Tone detection
	ToneFrequency   float64 `mapstructure:"tone_frequency" yaml:"tone_frequency"`
	BlockSize       int     `mapstructure:"block_size" yaml:"block_size"`
	OverlapPct      int     `mapstructure:"overlap_pct" yaml:"overlap_pct"`
	AGCEnabled      bool    `mapstructure:"agc_enabled" yaml:"agc_enabled"`
	AGCDecay        float64 `mapstructure:"agc_decay" yaml:"agc_decay"`
	AGCAttack       float64 `mapstructure:"agc_attack" yaml:"agc_attack"`
	AGCWarmupBlocks int     `mapstructure:"agc_warmup_blocks" yaml:"agc_warmup_blocks"`

	// Timing
	WPM       int `mapstructure:"wpm" yaml:"wpm"`
	Accuracy  int `mapstructure:"accuracy" yaml:"accuracy"`
	FlushDots int `mapstructure:"flush_dots" yaml:"flush_dots"`

	// Encoding
	ToneAmplitude float64 `mapstructure:"tone_amplitude" yaml:"tone_amplitude"`

	// Publishing
	MQTTBroker   string `mapstructure:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTTopic    string `mapstructure:"mqtt_topic" yaml:"mqtt_topic"`
	MQTTClientID string `mapstructure:"mqtt_client_id" yaml:"mqtt_client_id"`
	HTTPListen   string `mapstructure:"http_listen" yaml:"http_listen"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`
	Debug    bool   `mapstructure:"debug" yaml:"debug"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("tone_frequency", 750)
	viper.SetDefault("block_size", 512)
	viper.SetDefault("overlap_pct", 50)
	viper.SetDefault("agc_enabled", true)
	viper.SetDefault("agc_decay", 0.9995)
	viper.SetDefault("agc_attack", 0.1)
	viper.SetDefault("agc_warmup_blocks", 10)
	viper.SetDefault("wpm", 15)
	viper.SetDefault("accuracy", 70)
	viper.SetDefault("flush_dots", 10)
	viper.SetDefault("tone_amplitude", 0.8)
	viper.SetDefault("mqtt_broker", "")
	viper.SetDefault("mqtt_topic", "cwblocks/text")
	viper.SetDefault("mqtt_client_id", "cwblocks")
	viper.SetDefault("http_listen", "")
	viper.SetDefault("log_level", "standard")
	viper.SetDefault("log_file", "stderr")
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/cwblocks/
func Init() error {
	SetDefaults()

	viper.SetConfigType(ConfigType)
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// SamplesPerDot returns the dot length in audio samples.
func (s *Settings) SamplesPerDot() int {
	return max(1, int(s.SampleRate*1.2/float64(s.WPM)+0.5))
}

// HopSize returns the audio samples per envelope value.
func (s *Settings) HopSize() int {
	return max(1, s.BlockSize-(s.BlockSize*s.OverlapPct)/100)
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Audio device settings
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BufferSize < 64 || s.BufferSize > 8192 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 64 and 8192, got %d", s.BufferSize))
	}
	if s.BufferSize&(s.BufferSize-1) != 0 {
		errs = append(errs, fmt.Errorf("buffer_size should be a power of 2, got %d", s.BufferSize))
	}

	// Tone detection
	if s.ToneFrequency < 100 || s.ToneFrequency > 3000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 100 and 3000 Hz, got %v", s.ToneFrequency))
	}
	if s.BlockSize < 32 || s.BlockSize > 4096 {
		errs = append(errs, fmt.Errorf("block_size must be between 32 and 4096, got %d", s.BlockSize))
	}
	if s.BlockSize&(s.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size should be a power of 2, got %d", s.BlockSize))
	}
	if s.OverlapPct < 0 || s.OverlapPct > 99 {
		errs = append(errs, fmt.Errorf("overlap_pct must be between 0 and 99, got %d", s.OverlapPct))
	}
	if s.AGCDecay < 0.99 || s.AGCDecay > 0.99999 {
		errs = append(errs, fmt.Errorf("agc_decay must be between 0.99 and 0.99999, got %v", s.AGCDecay))
	}
	if s.AGCAttack < 0.0 || s.AGCAttack > 1.0 {
		errs = append(errs, fmt.Errorf("agc_attack must be between 0.0 and 1.0, got %v", s.AGCAttack))
	}
	if s.AGCWarmupBlocks < 0 || s.AGCWarmupBlocks > 1000 {
		errs = append(errs, fmt.Errorf("agc_warmup_blocks must be between 0 and 1000, got %d", s.AGCWarmupBlocks))
	}

	// Timing
	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}
	if s.Accuracy < 0 || s.Accuracy > 100 {
		errs = append(errs, fmt.Errorf("accuracy must be between 0 and 100, got %d", s.Accuracy))
	}
	if s.FlushDots < 0 || s.FlushDots > 100 {
		errs = append(errs, fmt.Errorf("flush_dots must be between 0 and 100, got %d", s.FlushDots))
	}

	// Encoding
	if s.ToneAmplitude <= 0.0 || s.ToneAmplitude > 1.0 {
		errs = append(errs, fmt.Errorf("tone_amplitude must be above 0.0 and at most 1.0, got %v", s.ToneAmplitude))
	}

	// Publishing
	if s.MQTTBroker != "" && s.MQTTTopic == "" {
		errs = append(errs, errors.New("mqtt_topic is required when mqtt_broker is set"))
	}

	// Logging
	if !slices.Contains(LogLevels, s.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of %v, got %q", LogLevels, s.LogLevel))
	}
	if s.LogFile == "" {
		errs = append(errs, errors.New("log_file must not be empty"))
	}

	// Nyquist check: tone frequency must be less than half the sample rate
	if s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	// the envelope must resolve a dot
	if s.WPM > 0 && s.SampleRate > 0 && s.BlockSize > 0 && s.HopSize() > s.SamplesPerDot()/2 {
		errs = append(errs, fmt.Errorf("block hop (%d samples) must not exceed half a dot (%d samples at %d wpm)",
			s.HopSize(), s.SamplesPerDot(), s.WPM))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
