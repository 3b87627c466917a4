package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by tutormind.
const EnvPrefix = "TUTORMIND"

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where tutormind stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// Secret signs and verifies bearer tokens.
	Secret string

	// AI Configuration
	AIProvider         string        // ai.provider (default: openai)
	AIModel            string        // ai.model (default: gpt-4o-mini)
	AIAPIKey           string        // ai.api_key
	AIBaseURL          string        // ai.base_url
	AITimeout          time.Duration // ai.timeout (default: 60s)
	AIMaxConcurrency   int           // ai.max_concurrency (default: 8)
	AIStructuredOutput bool          // ai.structured_output (default: false)

	// Conversation tuning
	ChatContextWindow int     // chat.context_window (default: 4)
	ChatTemperature   float32 // chat.temperature (default: 0.8)
	ChatMaxTokens     int     // chat.max_tokens (default: 600)
	QuizTemperature   float32 // quiz.temperature (default: 0.7)
	QuizMaxTokens     int     // quiz.max_tokens (default: 300)
	MaxSummaryRunes   int     // memory.max_summary_runes (default: 4000, 0 disables the cap)

	RateLimitRPS   float64 // rate_limit.rps (default: 2)
	RateLimitBurst int     // rate_limit.burst (default: 5)
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8081)
	v.SetDefault("data", "")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "")
	v.SetDefault("secret", "")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.max_concurrency", 8)
	v.SetDefault("ai.structured_output", false)

	v.SetDefault("chat.context_window", 4)
	v.SetDefault("chat.temperature", 0.8)
	v.SetDefault("chat.max_tokens", 600)
	v.SetDefault("quiz.temperature", 0.7)
	v.SetDefault("quiz.max_tokens", 300)
	v.SetDefault("memory.max_summary_runes", 4000)

	v.SetDefault("rate_limit.rps", 2.0)
	v.SetDefault("rate_limit.burst", 5)
}

// BindEnv makes v read TUTORMIND_* environment variables, e.g. TUTORMIND_AI_API_KEY
// for "ai.api_key".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper builds a profile from the resolved viper keys.
func FromViper(v *viper.Viper) *Profile {
	return &Profile{
		Mode:   v.GetString("mode"),
		Addr:   v.GetString("addr"),
		Port:   v.GetInt("port"),
		Data:   v.GetString("data"),
		DSN:    v.GetString("dsn"),
		Driver: v.GetString("driver"),
		Secret: v.GetString("secret"),

		AIProvider:         v.GetString("ai.provider"),
		AIModel:            v.GetString("ai.model"),
		AIAPIKey:           v.GetString("ai.api_key"),
		AIBaseURL:          v.GetString("ai.base_url"),
		AITimeout:          v.GetDuration("ai.timeout"),
		AIMaxConcurrency:   v.GetInt("ai.max_concurrency"),
		AIStructuredOutput: v.GetBool("ai.structured_output"),

		ChatContextWindow: v.GetInt("chat.context_window"),
		ChatTemperature:   float32(v.GetFloat64("chat.temperature")),
		ChatMaxTokens:     v.GetInt("chat.max_tokens"),
		QuizTemperature:   float32(v.GetFloat64("quiz.temperature")),
		QuizMaxTokens:     v.GetInt("quiz.max_tokens"),
		MaxSummaryRunes:   v.GetInt("memory.max_summary_runes"),

		RateLimitRPS:   v.GetFloat64("rate_limit.rps"),
		RateLimitBurst: v.GetInt("rate_limit.burst"),
	}
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if a provider is selected and it can be reached.
func (p *Profile) IsAIEnabled() bool {
	if p.AIProvider == "" {
		return false
	}
	return p.AIProvider == "ollama" || p.AIAPIKey != ""
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q: only 'sqlite' and 'postgres' are supported", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Data == "" {
		if p.Mode == "prod" {
			if runtime.GOOS == "windows" {
				p.Data = filepath.Join(os.Getenv("ProgramData"), "tutormind")
			} else {
				p.Data = "/var/opt/tutormind"
			}
		} else {
			p.Data = "."
		}
	}
	if p.Mode == "prod" {
		if _, err := os.Stat(p.Data); os.IsNotExist(err) {
			if err := os.MkdirAll(p.Data, 0770); err != nil {
				slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("tutormind_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.Secret == "" {
		if p.Mode == "prod" {
			return errors.New("secret is required in prod mode")
		}
		p.Secret = "tutormind-" + p.Mode
	}
	if p.ChatContextWindow < 0 {
		p.ChatContextWindow = 0
	}
	if p.MaxSummaryRunes < 0 {
		p.MaxSummaryRunes = 0
	}

	return nil
}
