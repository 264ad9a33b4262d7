package http

import (
	"time"

	"github.com/EternisAI/fleet-monitor/internal/api/http/handler"
)

const DefaultRequestTimeout = handler.DefaultTimeout

type Config struct {
	Port           uint          `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}
