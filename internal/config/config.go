package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/a3tai/reportshield/internal/audit"
)

const (
	// OCR providers
	ProviderAzure   = "azure"
	ProviderMistral = "mistral"
	ProviderLocal   = "local"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 25 * 1024 * 1024 // 25MB
	DefaultMaxPages    = 500

	// Policy document versions the rule engine is written against
	DefaultRulesVersion     = "v2.9"
	DefaultSchematicVersion = "v6.6"
)

// Config holds all configuration for the audit service
type Config struct {
	Version string       `mapstructure:"version"`
	Audit   AuditConfig  `mapstructure:"audit"`
	Policy  PolicyConfig `mapstructure:"policy"`
	OCR     OCRConfig    `mapstructure:"ocr"`
	LLM     LLMConfig    `mapstructure:"llm"`
	Server  ServerConfig `mapstructure:"server"`
	Batch   BatchConfig  `mapstructure:"batch"`
	MCP     MCPConfig    `mapstructure:"mcp"`
	Log     LogConfig    `mapstructure:"log"`
}

// AuditConfig holds input limits and output tunables.
type AuditConfig struct {
	MaxFileSize        int64  `mapstructure:"max_file_size"`
	MaxPages           int    `mapstructure:"max_pages"`
	EvidenceMaxWords   int    `mapstructure:"evidence_max_words"`
	PublicMode         bool   `mapstructure:"public_mode"`
	RedactPII          bool   `mapstructure:"redact_pii"`
	MissingFieldPolicy string `mapstructure:"missing_field_policy"`
	Style              string `mapstructure:"style"`
}

// PolicyConfig locates the versioned policy documents on disk.
type PolicyConfig struct {
	RulesPath        string `mapstructure:"rules_path"`
	SchematicPath    string `mapstructure:"schematic_path"`
	StateHooksPath   string `mapstructure:"state_hooks_path"`
	RulesVersion     string `mapstructure:"rules_version"`
	SchematicVersion string `mapstructure:"schematic_version"`
}

// OCRConfig selects and configures the layout-analysis backend.
type OCRConfig struct {
	Provider      string        `mapstructure:"provider"`
	LocalFallback bool          `mapstructure:"local_fallback"`
	TimeoutSecs   int           `mapstructure:"timeout_secs"`
	Azure         AzureConfig   `mapstructure:"azure"`
	Mistral       MistralConfig `mapstructure:"mistral"`
}

// AzureConfig configures Azure Document Intelligence.
type AzureConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Key            string `mapstructure:"key"`
	Model          string `mapstructure:"model"`
	APIVersion     string `mapstructure:"api_version"`
	PollIntervalMS int    `mapstructure:"poll_interval_ms"`
}

// MistralConfig configures the Mistral OCR endpoint.
type MistralConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Endpoint string `mapstructure:"endpoint"`
}

// LLMConfig configures the optional LLM renderer.
type LLMConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int    `mapstructure:"max_tokens"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
	TimeoutSecs   int    `mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host             string   `mapstructure:"host"`
	Port             int      `mapstructure:"port"`
	CORSOrigins      []string `mapstructure:"cors_origins"`
	RateLimitRPM     int      `mapstructure:"rate_limit_rpm"`
	FetchTimeoutSecs int      `mapstructure:"fetch_timeout_secs"`
}

// BatchConfig configures directory audits.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// MCPConfig configures the MCP tool surface. Root confines the paths tools
// may read; empty allows any path.
type MCPConfig struct {
	Root string `mapstructure:"root"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flags onto their viper keys
var flagKeys = map[string]string{
	"rules":          "policy.rules_path",
	"schematic":      "policy.schematic_path",
	"state-hooks":    "policy.state_hooks_path",
	"style":          "audit.style",
	"public":         "audit.public_mode",
	"redact-pii":     "audit.redact_pii",
	"max-file-size":  "audit.max_file_size",
	"max-pages":      "audit.max_pages",
	"ocr-provider":   "ocr.provider",
	"llm":            "llm.enabled",
	"host":           "server.host",
	"port":           "server.port",
	"concurrency":    "batch.concurrency",
	"loglevel":       "log.level",
	"log-format":     "log.format",
	"missing-fields": "audit.missing_field_policy",
	"root":           "mcp.root",
}

// DefineFlags registers the shared command line flags on fs
func DefineFlags(fs *pflag.FlagSet) {
	fs.String("rules", "system/output_rules.txt", "Path to the output rules document")
	fs.String("schematic", "system/execution_schematic.txt", "Path to the execution schematic document")
	fs.String("state-hooks", "system/state_hooks.yaml", "Path to the state disclosure hooks document (YAML or JSON)")
	fs.String("style", string(audit.StyleAnalyst), "Output style: 'analyst' or 'legacy'")
	fs.Bool("public", true, "Mask appraiser and client names in the output")
	fs.Bool("redact-pii", true, "Mask PII in evidence snippets")
	fs.Int64("max-file-size", DefaultMaxFileSize, "Maximum PDF file size in bytes")
	fs.Int("max-pages", DefaultMaxPages, "Maximum PDF page count")
	fs.String("ocr-provider", ProviderAzure, "OCR provider: 'azure', 'mistral' or 'local'")
	fs.Bool("llm", false, "Render through the LLM when configured")
	fs.String("host", DefaultHost, "Server host address")
	fs.Int("port", DefaultPort, "Server port")
	fs.Int("concurrency", 4, "Concurrent audits in batch mode")
	fs.String("loglevel", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", "json", "Log format: 'json' or 'console'")
	fs.String("missing-fields", string(audit.MissingFieldSkip), "Missing field policy: 'skip' or 'annotate'")
	fs.String("root", "", "Directory MCP tools may read from (empty allows any path)")
}

// setDefaults registers every key so environment-only values unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "1.0.0")
	v.SetDefault("audit.max_file_size", DefaultMaxFileSize)
	v.SetDefault("audit.max_pages", DefaultMaxPages)
	v.SetDefault("audit.evidence_max_words", audit.DefaultEvidenceMaxWords)
	v.SetDefault("audit.public_mode", true)
	v.SetDefault("audit.redact_pii", true)
	v.SetDefault("audit.missing_field_policy", string(audit.MissingFieldSkip))
	v.SetDefault("audit.style", string(audit.StyleAnalyst))
	v.SetDefault("policy.rules_path", "system/output_rules.txt")
	v.SetDefault("policy.schematic_path", "system/execution_schematic.txt")
	v.SetDefault("policy.state_hooks_path", "system/state_hooks.yaml")
	v.SetDefault("policy.rules_version", DefaultRulesVersion)
	v.SetDefault("policy.schematic_version", DefaultSchematicVersion)
	v.SetDefault("ocr.provider", ProviderAzure)
	v.SetDefault("ocr.local_fallback", true)
	v.SetDefault("ocr.timeout_secs", 120)
	v.SetDefault("ocr.azure.endpoint", "")
	v.SetDefault("ocr.azure.key", "")
	v.SetDefault("ocr.azure.model", "prebuilt-document")
	v.SetDefault("ocr.azure.api_version", "2023-07-31")
	v.SetDefault("ocr.azure.poll_interval_ms", 1000)
	v.SetDefault("ocr.mistral.api_key", "")
	v.SetDefault("ocr.mistral.model", "mistral-ocr-latest")
	v.SetDefault("ocr.mistral.endpoint", "https://api.mistral.ai/v1/ocr")
	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_input_chars", 60000)
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit_rpm", 60)
	v.SetDefault("server.fetch_timeout_secs", 20)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("mcp.root", "")
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", "json")
}

// Load reads configuration from an optional reportshield.yaml, the
// environment and fs, in increasing precedence. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetConfigName("reportshield")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REPORTSHIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, eris.Wrapf(err, "config: bind flag %s", flag)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Audit.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.Audit.MaxPages <= 0 {
		return errors.New("maximum page count must be positive")
	}
	if c.Audit.EvidenceMaxWords <= 0 {
		return errors.New("evidence word cap must be positive")
	}
	if _, err := audit.ParseStyle(c.Audit.Style); err != nil {
		return err
	}
	if _, err := audit.ParseMissingFieldPolicy(c.Audit.MissingFieldPolicy); err != nil {
		return err
	}

	if c.Policy.RulesPath == "" || c.Policy.SchematicPath == "" {
		return errors.New("rules and schematic paths cannot be empty")
	}

	switch c.OCR.Provider {
	case ProviderAzure, ProviderMistral, ProviderLocal:
	default:
		return fmt.Errorf("invalid OCR provider: %s (must be one of: azure, mistral, local)", c.OCR.Provider)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Server.RateLimitRPM < 0 {
		return errors.New("rate limit cannot be negative")
	}

	if c.Batch.Concurrency < 1 {
		return errors.New("batch concurrency must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Log.Level)
	}

	return nil
}

// AuditOptions returns the extraction and rendering tunables
func (c *Config) AuditOptions() audit.Options {
	style, _ := audit.ParseStyle(c.Audit.Style)
	return audit.Options{
		EvidenceMaxWords: c.Audit.EvidenceMaxWords,
		PublicMode:       c.Audit.PublicMode,
		RedactPII:        c.Audit.RedactPII,
		Style:            style,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.Log.Level == "debug"
}

// String returns a string representation of the configuration. Secrets are
// never included.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Rules: %s, Schematic: %s, OCR: %s, LLM: %t, Server: %s, MaxFileSize: %d, MaxPages: %d}",
		c.Policy.RulesPath, c.Policy.SchematicPath, c.OCR.Provider, c.LLM.Enabled, c.Address(),
		c.Audit.MaxFileSize, c.Audit.MaxPages)
}

// InitLogger initializes the global zap logger. Both encodings write to
// stderr, leaving stdout to reports and MCP stdio traffic.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
