package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	SendBox  SendBoxConfig  `yaml:"sendbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	SendEventsTopicName string `yaml:"send_events_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SendBoxConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	AppURL             string `yaml:"app_url"`
	JWTSecret          string `yaml:"jwt_secret"`
	Timezone           string `yaml:"timezone"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	TrackingCacheTTLSeconds int `yaml:"tracking_cache_ttl_seconds"`

	// Лимиты запросов. Ноль — значение по умолчанию.
	GeneralRateLimitPer15Min int `yaml:"general_rate_limit_per_15min"`
	AuthRateLimitPer15Min    int `yaml:"auth_rate_limit_per_15min"`
	ModifyRateLimitPerMinute int `yaml:"modify_rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
