package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	Factory      string
	PgDSN        string
	Lookback     time.Duration
	StepBlocks   uint64
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	CallTimeout  time.Duration

	PriceFeed     string
	PriceURL      string
	PriceMaxStale time.Duration

	TotalSupply  int64
	VolumeWindow time.Duration
	ExportPath   string

	Listen   string
	SyncSpec string
	// Tokens narrows scheduled syncs to a fixed address set; empty means
	// every token with factory activity.
	Tokens []string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CURVESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("lookback", 9*time.Hour)
	v.SetDefault("step-blocks", uint64(1000))
	v.SetDefault("concurrency", 5)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("call-timeout", 15*time.Second)
	v.SetDefault("price-max-stale", 15*time.Minute)
	v.SetDefault("total-supply", int64(1_000_000_000))
	v.SetDefault("volume-window", 24*time.Hour)
	v.SetDefault("listen", ":8080")
	v.SetDefault("sync-spec", "@every 5m")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:        v.GetString("rpc"),
		Factory:       v.GetString("factory"),
		PgDSN:         v.GetString("pg-dsn"),
		Lookback:      v.GetDuration("lookback"),
		StepBlocks:    v.GetUint64("step-blocks"),
		Concurrency:   v.GetInt("concurrency"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		CallTimeout:   v.GetDuration("call-timeout"),
		PriceFeed:     v.GetString("price-feed"),
		PriceURL:      v.GetString("price-url"),
		PriceMaxStale: v.GetDuration("price-max-stale"),
		TotalSupply:   v.GetInt64("total-supply"),
		VolumeWindow:  v.GetDuration("volume-window"),
		ExportPath:    v.GetString("export"),
		Listen:        v.GetString("listen"),
		SyncSpec:      v.GetString("sync-spec"),
		Tokens:        getStringSlice(v, "tokens"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
