// Package config loads pivoice configuration from a TOML file, a .env file
// and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultPath is the config file looked up when no --config flag is given.
const DefaultPath = "pivoice.toml"

// Duration is a time.Duration that decodes from strings like "6s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the full pivoice configuration.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Switch    SwitchConfig    `toml:"switch"`
	Display   DisplayConfig   `toml:"display"`
	Audio     AudioConfig     `toml:"audio"`
	STT       STTConfig       `toml:"stt"`
	AI        AIConfig        `toml:"ai"`
	Weather   WeatherConfig   `toml:"weather"`
	Loop      LoopConfig      `toml:"loop"`
	Web       WebConfig       `toml:"web"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// SwitchConfig describes the GPIO input wired to the slide switch.
type SwitchConfig struct {
	Pin      string   `toml:"pin"`
	Debounce Duration `toml:"debounce"`
}

// DisplayConfig describes the I2C character LCD.
type DisplayConfig struct {
	Bus     string `toml:"bus"`
	Address uint16 `toml:"address"`
	Cols    int    `toml:"cols"`
	Rows    int    `toml:"rows"`
}

// AudioConfig describes the arecord capture.
type AudioConfig struct {
	Device   string   `toml:"device"`
	Path     string   `toml:"path"`
	Duration Duration `toml:"duration"`
	Command  string   `toml:"command"`
}

// STTConfig configures the speech-to-text provider.
type STTConfig struct {
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

// AIConfig configures the generative backend used by the dialogue.
type AIConfig struct {
	Provider     string   `toml:"provider"` // gemini, openai, anthropic
	Fallback     []string `toml:"fallback"`
	SystemPrompt string   `toml:"system_prompt"`
	Timeout      Duration `toml:"timeout"`
	MaxTokens    int      `toml:"max_tokens"` // 0 keeps the provider default

	Gemini    ProviderConfig `toml:"gemini"`
	OpenAI    ProviderConfig `toml:"openai"`
	Anthropic ProviderConfig `toml:"anthropic"`
}

// ProviderConfig holds per-backend connection settings.
type ProviderConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
}

// WeatherConfig points the weather tool at Open-Meteo compatible endpoints.
type WeatherConfig struct {
	GeocodingURL string   `toml:"geocoding_url"`
	ForecastURL  string   `toml:"forecast_url"`
	Timeout      Duration `toml:"timeout"`
}

// LoopConfig holds the interaction loop timings and messages.
type LoopConfig struct {
	NoSpeechPause Duration `toml:"no_speech_pause"`
	AnswerDwell   Duration `toml:"answer_dwell"`
	ErrorPause    Duration `toml:"error_pause"`
	ReadyLine1    string   `toml:"ready_line1"`
	ReadyLine2    string   `toml:"ready_line2"`
}

// WebConfig controls the optional status panel.
type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// TelemetryConfig controls OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

// Default returns the configuration matching the reference wiring:
// GPIO17 switch, 16x2 PCF8574 LCD at 0x27 on bus 1, Blue Yeti on plughw:2,0.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Switch: SwitchConfig{
			Pin: "GPIO17",
		},
		Display: DisplayConfig{
			Bus:     "1",
			Address: 0x27,
			Cols:    16,
			Rows:    2,
		},
		Audio: AudioConfig{
			Device:   "plughw:2,0",
			Path:     "input.wav",
			Duration: Duration{6 * time.Second},
			Command:  "arecord",
		},
		STT: STTConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-transcribe",
			Timeout: Duration{60 * time.Second},
		},
		AI: AIConfig{
			Provider: "gemini",
			Gemini: ProviderConfig{
				BaseURL: "https://generativelanguage.googleapis.com/v1beta",
				Model:   "gemini-2.5-flash",
			},
			OpenAI: ProviderConfig{
				BaseURL: "https://api.openai.com/v1",
				Model:   "gpt-4o-mini",
			},
			Anthropic: ProviderConfig{
				Model: "claude-3-5-haiku-latest",
			},
		},
		Weather: WeatherConfig{
			GeocodingURL: "https://geocoding-api.open-meteo.com",
			ForecastURL:  "https://api.open-meteo.com",
			Timeout:      Duration{6 * time.Second},
		},
		Loop: LoopConfig{
			NoSpeechPause: Duration{2500 * time.Millisecond},
			AnswerDwell:   Duration{6 * time.Second},
			ErrorPause:    Duration{3 * time.Second},
			ReadyLine1:    "Pi Voice Ready",
			ReadyLine2:    "Flip switch to talk",
		},
		Web: WebConfig{
			Addr: ":8080",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
	}
}

// Load reads the TOML file at path on top of Default.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored and existing
// variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overlays API keys and selected overrides from the environment.
func (c *Config) ApplyEnv() {
	loadString(&c.STT.APIKey, "OPENAI_API_KEY")
	loadString(&c.AI.OpenAI.APIKey, "OPENAI_API_KEY")
	// GOOGLE_API_KEY wins when both are set, as in Google's genai clients.
	loadString(&c.AI.Gemini.APIKey, "GEMINI_API_KEY")
	loadString(&c.AI.Gemini.APIKey, "GOOGLE_API_KEY")
	loadString(&c.AI.Anthropic.APIKey, "ANTHROPIC_API_KEY")

	loadString(&c.AI.Provider, "PIVOICE_AI_PROVIDER")
	loadString(&c.Audio.Device, "PIVOICE_AUDIO_DEVICE")
	loadString(&c.Switch.Pin, "PIVOICE_SWITCH_PIN")
	loadString(&c.Log.Level, "PIVOICE_LOG_LEVEL")
	loadString(&c.Web.Addr, "PIVOICE_WEB_ADDR")
	parseFromEnv(&c.Display.Address, "PIVOICE_LCD_ADDRESS", func(s string) (uint16, error) {
		v, err := strconv.ParseUint(s, 0, 16)
		return uint16(v), err
	})
	parseFromEnv(&c.Telemetry.Enabled, "PIVOICE_TELEMETRY", strconv.ParseBool)
}

// Validate checks the configuration for values the loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Display.Cols <= 0 || c.Display.Rows < 2 {
		errs = append(errs, fmt.Errorf("display: need at least 2 rows and 1 column, got %dx%d", c.Display.Cols, c.Display.Rows))
	}
	if c.Audio.Duration.Duration <= 0 {
		errs = append(errs, errors.New("audio: duration must be positive"))
	}
	if c.Audio.Path == "" {
		errs = append(errs, errors.New("audio: path required"))
	}
	for _, name := range append([]string{c.AI.Provider}, c.AI.Fallback...) {
		if _, ok := c.AI.ProviderByName(name); !ok {
			errs = append(errs, fmt.Errorf("ai: unknown provider %q", name))
		}
	}
	return errors.Join(errs...)
}

// ProviderByName returns the provider block for gemini, openai or anthropic.
func (a *AIConfig) ProviderByName(name string) (ProviderConfig, bool) {
	switch strings.ToLower(name) {
	case "gemini":
		return a.Gemini, true
	case "openai":
		return a.OpenAI, true
	case "anthropic":
		return a.Anthropic, true
	}
	return ProviderConfig{}, false
}

func loadString(dest *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dest = v
	}
}

func parseFromEnv[T any](dest *T, key string, parseFn func(string) (T, error)) {
	str := os.Getenv(key)
	if str == "" {
		return
	}
	v, err := parseFn(str)
	if err != nil {
		// Leave the file/default value in place; Validate reports structural problems.
		return
	}
	*dest = v
}
