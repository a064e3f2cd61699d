package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string     `yaml:"env" env:"ENV" env-default:"local"`
	DatabaseDSN string     `yaml:"database_dsn" env:"DATABASE_URL"`
	RedisAddr   string     `yaml:"redis_addr" env:"REDIS_ADDR"`
	HTTPServer  HTTPServer `yaml:"http_server"`
	Messages    Messages   `yaml:"messages"`
	Rooms       Rooms      `yaml:"rooms"`
	Badge       Badge      `yaml:"badge"`
	S3          S3         `yaml:"s3"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Messages struct {
	PageSize      int `yaml:"page_size" env-default:"50"`
	ReadMarkLimit int `yaml:"read_mark_limit" env-default:"100"`
}

type Rooms struct {
	FetchCeiling int `yaml:"fetch_ceiling" env-default:"100"`
}

type Badge struct {
	PollInterval time.Duration `yaml:"poll_interval" env-default:"30s"`
}

type S3 struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
