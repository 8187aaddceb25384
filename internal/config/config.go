package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WatchConfig holds configuration for the chain watcher.
type WatchConfig struct {
	RPCURL              string
	HookAddress         string
	FromBlock           uint64
	ToBlock             uint64
	BatchSize           uint64
	Checkpoint          string
	CheckpointEnabled   bool
	MaxRetries          int
	RetryBackoff        time.Duration
	PGDSN               string
	EventsOut           string
	PayoutsOut          string
	PremiumsOut         string
	ErrorsOut           string
	DefaultPremiumBps   uint32
	DefaultToleranceBps uint32
	LogLevel            string
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ILHOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

// LoadWatch merges config file, environment variables, and flags.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return WatchConfig{}, err
	}

	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("payouts-out", "./data/payouts.jsonl")
	v.SetDefault("premiums-out", "./data/premiums.jsonl")
	v.SetDefault("errors-out", "./data/errors.jsonl")
	v.SetDefault("default-premium-bps", 2)
	v.SetDefault("default-tolerance-bps", 100)
	v.SetDefault("log-level", "info")

	cfg := WatchConfig{
		RPCURL:              v.GetString("rpc"),
		HookAddress:         v.GetString("hook-address"),
		FromBlock:           v.GetUint64("from"),
		ToBlock:             v.GetUint64("to"),
		BatchSize:           v.GetUint64("batch-size"),
		Checkpoint:          v.GetString("checkpoint"),
		CheckpointEnabled:   v.GetBool("checkpoint-enabled"),
		MaxRetries:          v.GetInt("max-retries"),
		RetryBackoff:        v.GetDuration("retry-backoff"),
		PGDSN:               v.GetString("pg-dsn"),
		EventsOut:           v.GetString("events-out"),
		PayoutsOut:          v.GetString("payouts-out"),
		PremiumsOut:         v.GetString("premiums-out"),
		ErrorsOut:           v.GetString("errors-out"),
		DefaultPremiumBps:   v.GetUint32("default-premium-bps"),
		DefaultToleranceBps: v.GetUint32("default-tolerance-bps"),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In                  string
	PayoutsOut          string
	PremiumsOut         string
	ErrorsOut           string
	DefaultPremiumBps   uint32
	DefaultToleranceBps uint32
	LogLevel            string
}

// LoadReplay merges config file, environment variables, and flags.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}

	v.SetDefault("payouts-out", "./data/payouts.jsonl")
	v.SetDefault("premiums-out", "./data/premiums.jsonl")
	v.SetDefault("errors-out", "./data/errors.jsonl")
	v.SetDefault("default-premium-bps", 2)
	v.SetDefault("default-tolerance-bps", 100)
	v.SetDefault("log-level", "info")

	cfg := ReplayConfig{
		In:                  v.GetString("in"),
		PayoutsOut:          v.GetString("payouts-out"),
		PremiumsOut:         v.GetString("premiums-out"),
		ErrorsOut:           v.GetString("errors-out"),
		DefaultPremiumBps:   v.GetUint32("default-premium-bps"),
		DefaultToleranceBps: v.GetUint32("default-tolerance-bps"),
		LogLevel:            v.GetString("log-level"),
	}

	return cfg, nil
}

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	PGDSN    string
	PoolID   string
	Limit    int
	Decimals int32
	LogLevel string
}

// LoadInspect merges config file, environment variables, and flags.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return InspectConfig{}, err
	}

	v.SetDefault("limit", 20)
	v.SetDefault("decimals", 18)
	v.SetDefault("log-level", "info")

	cfg := InspectConfig{
		PGDSN:    v.GetString("pg-dsn"),
		PoolID:   v.GetString("pool-id"),
		Limit:    v.GetInt("limit"),
		Decimals: v.GetInt32("decimals"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
