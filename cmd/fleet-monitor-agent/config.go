package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EternisAI/fleet-monitor/internal/agent"
	"github.com/EternisAI/fleet-monitor/internal/bus"
	"github.com/EternisAI/fleet-monitor/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log    logger.Config `mapstructure:"log"`
	Server ServerConfig
	Agent  agent.Config `mapstructure:"agent"`
	Nats   bus.Config   `mapstructure:"nats"`
}

type ServerConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/fleet-monitor-agent")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.timeout", 5*time.Second)
	viper.SetDefault("agent.interval", agent.DefaultInterval)
	viper.SetDefault("agent.transport", agent.TransportHTTP)
	viper.SetDefault("nats.subject", bus.DefaultSubject)

	_ = viper.BindEnv("nats.url", "NATS_URL")

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		panic(err)
	}

	// Initialize logger with configured log level
	logger.Init(config.Log.Level)

	// Pretty print config as JSON (only at DEBUG level)
	if logger.IsDebug(config.Log.Level) {
		configJSON, err := json.MarshalIndent(config, "", "  ")
		if err == nil {
			fmt.Println("Config loaded:")
			fmt.Println(string(configJSON))
		}
	}
}
