package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/mfolsen/brewstock/internal/db"
)

// Config aggregates the server's runtime settings.
type Config struct {
	Database   db.Config
	ServerAddr string
	RedisAddr  string
	CORSOrigin string
}

// Default returns the settings used when no config file or env vars are set.
func Default() Config {
	return Config{
		Database:   db.DefaultConfig(),
		ServerAddr: ":8080",
		RedisAddr:  "localhost:6379",
		CORSOrigin: "http://localhost:3000",
	}
}

// Load reads config.yaml from the given path with env var overrides
// (BREWSTOCK_DATABASE_HOST and friends).
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("BREWSTOCK")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("redis.addr")
	v.BindEnv("cors.origin")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}
	if v.IsSet("redis.addr") {
		cfg.RedisAddr = v.GetString("redis.addr")
	}
	if v.IsSet("cors.origin") {
		cfg.CORSOrigin = v.GetString("cors.origin")
	}

	return cfg, nil
}
