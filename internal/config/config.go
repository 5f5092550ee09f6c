// Package config loads process configuration from the environment (and
// an optional .env file), following the teacher's flat-env-vars-with-
// defaults convention seen in AutoTraderConfig.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present (missing file is not an error, same
// as godotenv.Load's convention in the teacher repo) into the process
// environment; it returns nothing, and values are read back with Str and
// the other helpers below.
func Load(dotenvPath string) {
	_ = godotenv.Load(dotenvPath) // best-effort; real env vars still win
}

func Str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Int(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func Float(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func Bool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func Duration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// BrainConfig is the Brain process's environment-derived configuration.
type BrainConfig struct {
	BrokerAPIKey    string
	BrokerSecretKey string
	BrokerBaseURL   string
	BrokerDataURL   string
	GateBaseURL     string
	GateSharedSecret string
	PositionsFile   string
	MetricsAddr     string
	Dev             bool
}

func LoadBrainConfig() BrainConfig {
	return BrainConfig{
		BrokerAPIKey:     Str("BROKER_API_KEY", ""),
		BrokerSecretKey:  Str("BROKER_SECRET_KEY", ""),
		BrokerBaseURL:    Str("BROKER_BASE_URL", "https://api.brokerage.example"),
		BrokerDataURL:    Str("BROKER_DATA_URL", "https://data.brokerage.example"),
		GateBaseURL:      Str("GATE_BASE_URL", "http://localhost:8081"),
		GateSharedSecret: Str("GATE_SHARED_SECRET", ""),
		PositionsFile:    Str("POSITIONS_FILE", "positions.json"),
		MetricsAddr:      Str("BRAIN_METRICS_ADDR", ":9101"),
		Dev:              Bool("DEV", false),
	}
}

// GateConfig is the Gatekeeper process's environment-derived configuration.
type GateConfig struct {
	ListenAddr       string
	GateSharedSecret string
	AdminJWTSecret   string
	DBPath           string
	BrokerAPIKey     string
	BrokerSecretKey  string
	BrokerBaseURL    string
	ConstitutionPath string
	Dev              bool
}

func LoadGateConfig() GateConfig {
	return GateConfig{
		ListenAddr:       Str("GATE_LISTEN_ADDR", ":8081"),
		GateSharedSecret: Str("GATE_SHARED_SECRET", ""),
		AdminJWTSecret:   Str("GATE_ADMIN_JWT_SECRET", ""),
		DBPath:           Str("GATE_DB_PATH", "gate.db"),
		BrokerAPIKey:     Str("BROKER_API_KEY", ""),
		BrokerSecretKey:  Str("BROKER_SECRET_KEY", ""),
		BrokerBaseURL:    Str("BROKER_BASE_URL", "https://api.brokerage.example"),
		ConstitutionPath: Str("CONSTITUTION_PATH", "constitution.json"),
		Dev:              Bool("DEV", false),
	}
}
