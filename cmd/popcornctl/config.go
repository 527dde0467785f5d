package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"

	"github.com/jdholdren/popcorn/internal/redis"
)

type config struct {
	Redis redis.Config

	// How many feeds a redelivery writes to at once
	FanOutConcurrency int `env:"FANOUT_CONCURRENCY, default=8"`
}

// loadConfig reads the environment, with values from the TOML file at path
// taking precedence. Keys in the file are the variable names in lower case,
// e.g. redis_addr.
func loadConfig(ctx context.Context, path string) (config, error) {
	lookuper := envconfig.OsLookuper()
	if path != "" {
		fromFile, err := readConfigFile(path)
		if err != nil {
			return config{}, err
		}
		lookuper = envconfig.MultiLookuper(envconfig.MapLookuper(fromFile), lookuper)
	}

	var cfg config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return config{}, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

func readConfigFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening config: %w", err)
	}
	defer file.Close()

	var raw map[string]any
	if err := toml.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("error decoding config %s: %w", path, err)
	}

	vals := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("config key %s: tables and arrays are not supported", k)
		}
		vals[strings.ToUpper(k)] = fmt.Sprint(v)
	}

	return vals, nil
}
