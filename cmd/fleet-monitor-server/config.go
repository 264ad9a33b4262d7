package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/EternisAI/fleet-monitor/internal/api/http"
	"github.com/EternisAI/fleet-monitor/internal/bus"
	"github.com/EternisAI/fleet-monitor/internal/db"
	"github.com/EternisAI/fleet-monitor/internal/liveness"
	"github.com/EternisAI/fleet-monitor/internal/machines"
	"github.com/EternisAI/fleet-monitor/internal/telemetry"
	"github.com/EternisAI/fleet-monitor/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       logger.Config `mapstructure:"log"`
	Http      http.Config
	Store     StoreConfig
	DB        db.Config             `mapstructure:"db"`
	Badger    machines.BadgerConfig `mapstructure:"badger"`
	Liveness  liveness.Config       `mapstructure:"liveness"`
	Nats      bus.Config            `mapstructure:"nats"`
	Telemetry telemetry.Config      `mapstructure:"telemetry"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

var config Config

func InitConfig() {
	var err error

	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/fleet-monitor-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.request_timeout", http.DefaultRequestTimeout)
	viper.SetDefault("store.driver", machines.DriverPostgres)
	viper.SetDefault("db.schema", db.DefaultSchema)
	viper.SetDefault("liveness.threshold", liveness.DefaultThreshold)
	viper.SetDefault("liveness.never_seen_text", liveness.DefaultNeverSeenText)
	viper.SetDefault("liveness.timezone", "UTC")
	viper.SetDefault("nats.subject", bus.DefaultSubject)
	viper.SetDefault("nats.queue", bus.DefaultQueue)
	viper.SetDefault("telemetry.service_name", "fleet-monitor-server")

	_ = viper.BindEnv("db.url", "DATABASE_URL")
	_ = viper.BindEnv("nats.url", "NATS_URL")
	_ = viper.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

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
