package config

import "github.com/kelseyhightower/envconfig"

// Config 全部来自环境变量，前缀 AGORA_
type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`

	MySQLDSN string `envconfig:"MYSQL_DSN" default:"user:password@tcp(127.0.0.1:3306)/agora?charset=utf8mb4&parseTime=True"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"127.0.0.1:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"agora.notifications"`

	JWTAccessSecret  string `envconfig:"JWT_ACCESS_SECRET" default:""`
	JWTRefreshSecret string `envconfig:"JWT_REFRESH_SECRET" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("agora", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
