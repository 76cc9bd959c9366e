package config

import "os"

type WhatsApp struct {
	PhoneNumberID     string
	BusinessAccountID string
}

type Config struct {
	MetaAppID          string
	MetaAppSecret      string
	MetaAPIVersion     string
	WebhookVerifyToken string
	WhatsApp           WhatsApp
	PostgresURI        string
	RedisURI           string
	EncryptionKey      string
	SecretKey          string
	Port               string
}

func LoadConfig() *Config {
	return &Config{
		MetaAppID:          getEnv("META_APP_ID", ""),
		MetaAppSecret:      getEnv("META_APP_SECRET", ""),
		MetaAPIVersion:     getEnv("META_API_VERSION", "v21.0"),
		WebhookVerifyToken: getEnv("WEBHOOK_VERIFY_TOKEN", ""),
		WhatsApp: WhatsApp{
			PhoneNumberID:     getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			BusinessAccountID: getEnv("WHATSAPP_BUSINESS_ACCOUNT_ID", ""),
		},
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		RedisURI:      getEnv("REDIS_URI", "127.0.0.1:6379"),
		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		SecretKey:     getEnv("SECRET_KEY", ""),
		Port:          getEnv("PORT", "3000"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
