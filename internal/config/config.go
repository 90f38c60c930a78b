package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/vme50/paygate/pkg/validation"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// Settlement network configuration
	Network        string
	USDCAddress    string
	USDCDecimals   int
	FacilitatorURL string

	// Paywall defaults, applied when a creator omits the field
	ReceiverAddress    string
	DefaultPrice       string
	DefaultCurrency    string
	PaywallTitle       string
	PaywallDescription string

	// Moderation configuration
	ModerationAPIKey  string
	ModerationBaseURL string
	ModerationModel   string

	// Forwarding configuration
	TelegramBotToken string
	TelegramChatID   string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPSender       string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		APIPort:          getEnvAsInt("API_PORT", 8402),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "paygate"),

		Network:        getEnv("NETWORK", "base-sepolia"),
		USDCAddress:    getEnv("USDC_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		USDCDecimals:   getEnvAsInt("USDC_DECIMALS", 6),
		FacilitatorURL: getEnv("FACILITATOR_URL", "https://x402.org/facilitator"),

		ReceiverAddress:    getEnv("RECEIVER_ADDRESS", ""),
		DefaultPrice:       getEnv("DEFAULT_PRICE", "0.01"),
		DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "USDC"),
		PaywallTitle:       getEnv("PAYWALL_TITLE", "Contact Creator"),
		PaywallDescription: getEnv("PAYWALL_DESCRIPTION", "Message Submission (x402 Protected)"),

		ModerationAPIKey:  getEnv("DEEPSEEK_API_KEY", ""),
		ModerationBaseURL: getEnv("MODERATION_BASE_URL", "https://api.deepseek.com"),
		ModerationModel:   getEnv("MODERATION_MODEL", "deepseek-chat"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:         getEnv("SMTP_USER", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SMTPSender:       getEnv("SMTP_SENDER", ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.ReceiverAddress == "" {
		return fmt.Errorf("RECEIVER_ADDRESS is required")
	}

	if err := validation.ValidateAddress(c.ReceiverAddress); err != nil {
		return fmt.Errorf("invalid RECEIVER_ADDRESS format: %w", err)
	}

	if err := validation.ValidateAddress(c.USDCAddress); err != nil {
		return fmt.Errorf("invalid USDC_ADDRESS format: %w", err)
	}

	if c.USDCDecimals <= 0 {
		return fmt.Errorf("USDC_DECIMALS must be positive")
	}

	if c.Network == "" {
		return fmt.Errorf("NETWORK is required")
	}

	if c.FacilitatorURL == "" {
		return fmt.Errorf("FACILITATOR_URL is required")
	}

	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
