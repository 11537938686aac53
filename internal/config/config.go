// Package config loads codison settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spetersoncode/codison/channel"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// ErrNoAPIKey is returned when no provider key is configured.
var ErrNoAPIKey = errors.New("model api key not found in env")

// MCPServer is a remote tool server launched over stdio.
type MCPServer struct {
	Name    string
	Command string
	Args    []string
}

// Config holds the settings loaded from environment variables.
type Config struct {
	// Provider selection
	Provider string
	Model    string

	// API Keys
	OpenAIKey    string
	AnthropicKey string
	GoogleKey    string

	WorkingDir string

	// History persistence. An empty HistoryDB keeps history in memory.
	HistoryDB string
	Session   string

	LogLevel string
	LogFile  string

	// Agent config
	MaxSteps           int
	ToolTimeout        time.Duration
	ToolIsolation      bool
	ChannelPolicy      string
	EnableProjectTools bool
	MCPServers         []MCPServer

	// Server
	Addr string
}

// Load reads a .env file if present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env is fine

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	servers, err := ParseMCPServers(os.Getenv("CODISON_MCP_SERVERS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider:           strings.ToLower(os.Getenv("CODISON_PROVIDER")),
		Model:              os.Getenv("CODISON_MODEL"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:       os.Getenv("ANTHROPIC_API_KEY"),
		GoogleKey:          getEnvOrDefault("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		WorkingDir:         getEnvOrDefault("CODISON_WORKING_DIR", wd),
		HistoryDB:          os.Getenv("CODISON_HISTORY_DB"),
		Session:            getEnvOrDefault("CODISON_SESSION", "default"),
		LogLevel:           getEnvOrDefault("CODISON_LOG_LEVEL", "warn"),
		LogFile:            os.Getenv("CODISON_LOG_FILE"),
		MaxSteps:           getEnvIntOrDefault("CODISON_MAX_STEPS", 0),
		ToolTimeout:        getEnvDurationOrDefault("CODISON_TOOL_TIMEOUT", 2*time.Minute),
		ToolIsolation:      getEnvBoolOrDefault("CODISON_TOOL_ISOLATION", false),
		ChannelPolicy:      getEnvOrDefault("CODISON_CHANNEL_POLICY", channel.PolicySerialize.String()),
		EnableProjectTools: getEnvBoolOrDefault("CODISON_ENABLE_PROJECT_TOOLS", false),
		MCPServers:         servers,
		Addr:               getEnvOrDefault("CODISON_ADDR", ":8080"),
	}
	return cfg, nil
}

// ResolveProvider returns the configured provider or, when none is set, the
// first one with a key in the order OpenAI, Anthropic, Google.
func (c *Config) ResolveProvider() string {
	if c.Provider != "" {
		return c.Provider
	}
	switch {
	case c.OpenAIKey != "":
		return ProviderOpenAI
	case c.AnthropicKey != "":
		return ProviderAnthropic
	case c.GoogleKey != "":
		return ProviderGoogle
	}
	return ""
}

// APIKey returns the key for provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.OpenAIKey
	case ProviderAnthropic:
		return c.AnthropicKey
	case ProviderGoogle:
		return c.GoogleKey
	}
	return ""
}

// Validate checks that a usable provider is configured.
func (c *Config) Validate() error {
	provider := c.ResolveProvider()
	switch provider {
	case "":
		return ErrNoAPIKey
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
	default:
		return fmt.Errorf("unknown provider: %s (must be openai, anthropic, or google)", provider)
	}
	if c.APIKey(provider) == "" {
		return fmt.Errorf("%w: %s", ErrNoAPIKey, provider)
	}

	if _, err := channel.ParsePolicy(c.ChannelPolicy); err != nil {
		return err
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("CODISON_MAX_STEPS must not be negative")
	}
	return nil
}

// ParseMCPServers parses a semicolon-separated list of name=command entries,
// for example "fs=npx -y @modelcontextprotocol/server-filesystem /tmp".
func ParseMCPServers(value string) ([]MCPServer, error) {
	var servers []MCPServer
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, cmdline, ok := strings.Cut(entry, "=")
		fields := strings.Fields(cmdline)
		if !ok || strings.TrimSpace(name) == "" || len(fields) == 0 {
			return nil, fmt.Errorf("invalid mcp server %q: want name=command [args...]", entry)
		}
		servers = append(servers, MCPServer{
			Name:    strings.TrimSpace(name),
			Command: fields[0],
			Args:    fields[1:],
		})
	}
	return servers, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
