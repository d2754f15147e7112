// Package config provides the configuration structure for the radio clip
// tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/radio-tts-service/internal/audio"
	"github.com/book-expert/radio-tts-service/internal/params"
	"github.com/nats-io/nats.go"
	"github.com/pelletier/go-toml/v2"
)

// Oracle providers.
const (
	PROVIDER_HTTP    = "http"
	PROVIDER_EDGE    = "edge"
	PROVIDER_TENCENT = "tencent"
)

// Documented defaults applied to zero values.
const (
	DEFAULT_PROVIDER             = PROVIDER_HTTP
	DEFAULT_ORACLE_URL           = "http://127.0.0.1:8000"
	DEFAULT_ORACLE_TIMEOUT       = 60
	DEFAULT_AUDIO_ENCODING       = "MP3"
	DEFAULT_TENCENT_REGION       = "ap-guangzhou"
	DEFAULT_CLICK_DIR            = "assets"
	DEFAULT_CLICK_IN             = "In.wav"
	DEFAULT_CLICK_OUT            = "Out.wav"
	DEFAULT_CLICK_REDUCTION_DB   = 5.0
	DEFAULT_HEADROOM_DB          = 0.1
	DEFAULT_SILENCE_THRESHOLD    = -50.0
	DEFAULT_SILENCE_CHUNK_MS     = 10
	DEFAULT_WORKERS              = 1
	DEFAULT_ITEM_TIMEOUT_SECONDS = 120
	DEFAULT_OUTPUT_FORMAT        = "ogg"
	DEFAULT_REPORT_SEPARATOR     = ";"
	DEFAULT_OUTPUT_DIR           = "output"
	DEFAULT_FFMPEG_PATH          = "ffmpeg"
	DEFAULT_CLIP_SUBJECT         = "radio.clip.requested"
	DEFAULT_AUDIO_BUCKET         = "RADIO_CLIPS"
	DEFAULT_HISTORY_PATH         = "radiotts-history.db"
)

// OutputFormats lists the clip container formats an exporter can write.
var OutputFormats = []string{"wav", "ogg", "mp3", "flac"}

var (
	ErrUnknownProvider     = errors.New("unknown oracle provider")
	ErrInvalidWorkers      = errors.New("batch workers must be positive")
	ErrUnknownOutputFormat = errors.New("unknown output format")
	ErrInvalidSeparator    = errors.New("report separator must be a single character")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	ClipRequestedSubject   string `toml:"clip_requested_subject"`
	ClipQueueGroup         string `toml:"clip_queue_group"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// TencentConfig holds Tencent Cloud credentials for the tencent provider.
type TencentConfig struct {
	SecretID  string `toml:"secret_id"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	VoiceType int64  `toml:"voice_type"`
}

// OracleConfig selects and configures the speech synthesis oracle.
type OracleConfig struct {
	Provider       string        `toml:"provider"`
	URL            string        `toml:"url"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	AudioEncoding  string        `toml:"audio_encoding"`
	Tencent        TencentConfig `toml:"tencent"`
}

// DefaultsConfig holds the parameter values used when an item leaves one unset.
type DefaultsConfig struct {
	Voice    string `toml:"voice"`
	Volume   int    `toml:"volume"`
	NFilter  int    `toml:"nfilter"`
	HighPass int    `toml:"highpass"`
	LowPass  int    `toml:"lowpass"`
}

// EffectsConfig holds click assets and DSP tuning.
type EffectsConfig struct {
	ClickDir         string  `toml:"click_dir"`
	ClickIn          string  `toml:"click_in"`
	ClickOut         string  `toml:"click_out"`
	ClickReductionDB float64 `toml:"click_reduction_db"`
	HeadroomDB       float64 `toml:"headroom_db"`
	SilenceThreshold float64 `toml:"silence_threshold_dbfs"`
	SilenceChunkMS   int     `toml:"silence_chunk_ms"`
	FilterOrder      int     `toml:"filter_order"`
	NoiseSeed        uint64  `toml:"noise_seed"`
}

// BatchConfig holds batch run behavior.
type BatchConfig struct {
	Workers            int    `toml:"workers"`
	ItemTimeoutSeconds int    `toml:"item_timeout_seconds"`
	OutputFormat       string `toml:"output_format"`
	ReportSeparator    string `toml:"report_separator"`
	NormalizeText      bool   `toml:"normalize_text"`
	FFmpegPath         string `toml:"ffmpeg_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// HistoryConfig controls the sqlite run ledger.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config is the root configuration structure.
type Config struct {
	NATS     NATSConfig     `toml:"nats"`
	Oracle   OracleConfig   `toml:"oracle"`
	Defaults DefaultsConfig `toml:"defaults"`
	Effects  EffectsConfig  `toml:"effects"`
	Batch    BatchConfig    `toml:"batch"`
	Paths    PathsConfig    `toml:"paths"`
	History  HistoryConfig  `toml:"history"`
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(cfg)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (Config, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, readErr)
	}

	return Parse(data)
}

// Parse decodes TOML configuration data, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	unmarshalErr := toml.Unmarshal(data, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", unmarshalErr)
	}

	return finish(cfg)
}

// Default returns a configuration made only of defaults. Loading starts
// from it, so keys absent from a file keep their default even where zero
// is a legal value.
func Default() Config {
	cfg := Config{
		Defaults: DefaultsConfig{
			NFilter:  params.DEFAULT_NFILTER,
			HighPass: params.DEFAULT_HIGHPASS,
			LowPass:  params.DEFAULT_LOWPASS,
		},
		Effects: EffectsConfig{
			ClickReductionDB: DEFAULT_CLICK_REDUCTION_DB,
			HeadroomDB:       DEFAULT_HEADROOM_DB,
		},
	}

	cfg.ApplyDefaults()

	return cfg
}

func finish(cfg Config) (Config, error) {
	cfg.ApplyDefaults()

	validateErr := cfg.Validate()
	if validateErr != nil {
		return Config{}, validateErr
	}

	return cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults. Volume, nfilter,
// the filter cutoffs, click reduction and headroom are left alone since zero
// is meaningful for them; Default seeds those instead.
func (c *Config) ApplyDefaults() {
	defaultString(&c.Oracle.Provider, DEFAULT_PROVIDER)
	defaultString(&c.Oracle.URL, DEFAULT_ORACLE_URL)
	defaultInt(&c.Oracle.TimeoutSeconds, DEFAULT_ORACLE_TIMEOUT)
	defaultString(&c.Oracle.AudioEncoding, DEFAULT_AUDIO_ENCODING)
	defaultString(&c.Oracle.Tencent.Region, DEFAULT_TENCENT_REGION)

	defaultString(&c.Defaults.Voice, params.DEFAULT_VOICE)

	defaultString(&c.Effects.ClickDir, DEFAULT_CLICK_DIR)
	defaultString(&c.Effects.ClickIn, DEFAULT_CLICK_IN)
	defaultString(&c.Effects.ClickOut, DEFAULT_CLICK_OUT)
	defaultFloat(&c.Effects.SilenceThreshold, DEFAULT_SILENCE_THRESHOLD)
	defaultInt(&c.Effects.SilenceChunkMS, DEFAULT_SILENCE_CHUNK_MS)
	defaultInt(&c.Effects.FilterOrder, audio.DEFAULT_FILTER_ORDER)

	defaultInt(&c.Batch.Workers, DEFAULT_WORKERS)
	defaultInt(&c.Batch.ItemTimeoutSeconds, DEFAULT_ITEM_TIMEOUT_SECONDS)
	defaultString(&c.Batch.OutputFormat, DEFAULT_OUTPUT_FORMAT)
	defaultString(&c.Batch.ReportSeparator, DEFAULT_REPORT_SEPARATOR)
	defaultString(&c.Batch.FFmpegPath, DEFAULT_FFMPEG_PATH)

	defaultString(&c.Paths.BaseLogsDir, os.TempDir())
	defaultString(&c.Paths.OutputDir, DEFAULT_OUTPUT_DIR)

	defaultString(&c.NATS.URL, nats.DefaultURL)
	defaultString(&c.NATS.ClipRequestedSubject, DEFAULT_CLIP_SUBJECT)
	defaultString(&c.NATS.AudioObjectStoreBucket, DEFAULT_AUDIO_BUCKET)

	defaultString(&c.History.Path, DEFAULT_HISTORY_PATH)
}

// Validate rejects configurations no run could use.
func (c Config) Validate() error {
	switch c.Oracle.Provider {
	case PROVIDER_HTTP, PROVIDER_EDGE, PROVIDER_TENCENT:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Oracle.Provider)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Batch.Workers)
	}

	if !slices.Contains(OutputFormats, c.Batch.OutputFormat) {
		return fmt.Errorf("%w: %q", ErrUnknownOutputFormat, c.Batch.OutputFormat)
	}

	if c.Defaults.LowPass == 0 {
		return fmt.Errorf("defaults: %w", params.ErrZeroLowPass)
	}

	if len([]rune(c.Batch.ReportSeparator)) != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidSeparator, c.Batch.ReportSeparator)
	}

	return nil
}

// Separator returns the report separator as a rune.
func (b BatchConfig) Separator() rune {
	return []rune(b.ReportSeparator)[0]
}

func defaultString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func defaultInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}

func defaultFloat(field *float64, value float64) {
	if *field == 0 {
		*field = value
	}
}
