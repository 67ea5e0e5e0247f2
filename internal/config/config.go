package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env          string             `yaml:"env" env:"ENV" env-default:"local"`
	Storage      StorageConfig      `yaml:"storage"`
	Redis        RedisConfig        `yaml:"redis"`
	HTTP         HTTPConfig         `yaml:"http"`
	JWT          JWTConfig          `yaml:"jwt"`
	Auth         AuthConfig         `yaml:"auth"`
	Verification VerificationConfig `yaml:"verification"`
}

type StorageConfig struct {
	// Driver selects the durable store: "sqlite" or "mongo".
	Driver     string `yaml:"driver" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"STORAGE_PATH"`
	MongoURI   string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDB    string `yaml:"mongo_db" env:"MONGO_DB"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type HTTPConfig struct {
	Port    int           `yaml:"port" env-default:"8080"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret" env:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env-default:"authsvc"`
	Audience  string        `yaml:"audience" env-default:"course-platform"`
	AccessTTL time.Duration `yaml:"access_ttl" env-default:"60m"`
}

type AuthConfig struct {
	RefreshTTL time.Duration `yaml:"refresh_ttl" env-default:"168h"`
	BcryptCost int           `yaml:"bcrypt_cost" env-default:"10"`
}

type VerificationConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// MustLoad reads the config file at path, overlaying environment
// variables, and panics on any problem. Misconfiguration must stop
// the service before it serves a single request.
func MustLoad(path string) *Config {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}
