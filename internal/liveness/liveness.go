package liveness

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

const (
	// DefaultThreshold is how recent a heartbeat must be for a machine to
	// count as online. A machine seen exactly DefaultThreshold ago is offline.
	DefaultThreshold = 30 * time.Second

	DefaultNeverSeenText = "never seen"

	// LastSeenLayout renders timestamps as YYYY-MM-DD HH:MM:SS.
	LastSeenLayout = "2006-01-02 15:04:05"
)

type Config struct {
	Threshold     time.Duration `mapstructure:"threshold"`
	NeverSeenText string        `mapstructure:"never_seen_text"`
	Timezone      string        `mapstructure:"timezone"`
}

// Result is the classification of a single record at a given instant.
type Result struct {
	Status       Status
	LastSeenText string
}

// Evaluator classifies last-seen timestamps. It holds no mutable state and is
// safe for concurrent use.
type Evaluator struct {
	threshold time.Duration
	neverSeen string
	location  *time.Location
}

func NewEvaluator(cfg Config) (*Evaluator, error) {
	e := &Evaluator{
		threshold: cfg.Threshold,
		neverSeen: cfg.NeverSeenText,
		location:  time.UTC,
	}
	if e.threshold <= 0 {
		e.threshold = DefaultThreshold
	}
	if e.neverSeen == "" {
		e.neverSeen = DefaultNeverSeenText
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid liveness timezone %q: %w", cfg.Timezone, err)
		}
		e.location = loc
	}
	return e, nil
}

// Default returns an Evaluator with the default threshold, sentinel and UTC
// rendering.
func Default() *Evaluator {
	return &Evaluator{
		threshold: DefaultThreshold,
		neverSeen: DefaultNeverSeenText,
		location:  time.UTC,
	}
}

func (e *Evaluator) Threshold() time.Duration {
	return e.threshold
}

// Evaluate classifies lastSeen against now. A zero lastSeen means the machine
// has never reported.
func (e *Evaluator) Evaluate(lastSeen, now time.Time) Result {
	if lastSeen.IsZero() {
		return Result{Status: StatusOffline, LastSeenText: e.neverSeen}
	}

	status := StatusOffline
	if now.Sub(lastSeen) < e.threshold {
		status = StatusOnline
	}

	return Result{
		Status:       status,
		LastSeenText: lastSeen.In(e.location).Format(LastSeenLayout),
	}
}
