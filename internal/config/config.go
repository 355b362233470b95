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
	RPCURL      string
	PostgresDSN string

	// VaultAddresses lists fee vault contracts, current generation first.
	// Additional entries cover the legacy migration window.
	VaultAddresses []string
	FactoryAddress string
	HookAddress    string
	LockerAddress  string

	// AdminKey signs routing and escrow transactions. Empty disables the
	// reconciler's state-changing steps, never indexing.
	AdminKey string

	StartBlock   uint64
	BatchSize    uint64
	PollInterval time.Duration
	RetryBackoff time.Duration
	RetryCeiling time.Duration

	SweepEnabled bool
	SweepDelay   time.Duration

	StatusAddr string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(1000))
	v.SetDefault("poll-interval", 15*time.Second)
	v.SetDefault("retry-backoff", 5*time.Second)
	v.SetDefault("retry-ceiling", 5*time.Minute)
	v.SetDefault("sweep-enabled", true)
	v.SetDefault("sweep-delay", 2*time.Second)
	v.SetDefault("status-addr", ":8081")
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
		RPCURL:         v.GetString("rpc"),
		PostgresDSN:    v.GetString("pg-dsn"),
		VaultAddresses: getStringSlice(v, "vault"),
		FactoryAddress: v.GetString("factory"),
		HookAddress:    v.GetString("hook"),
		LockerAddress:  v.GetString("locker"),
		AdminKey:       v.GetString("admin-key"),
		StartBlock:     v.GetUint64("start-block"),
		BatchSize:      v.GetUint64("batch-size"),
		PollInterval:   v.GetDuration("poll-interval"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		RetryCeiling:   v.GetDuration("retry-ceiling"),
		SweepEnabled:   v.GetBool("sweep-enabled"),
		SweepDelay:     v.GetDuration("sweep-delay"),
		StatusAddr:     v.GetString("status-addr"),
		LogLevel:       v.GetString("log-level"),
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
