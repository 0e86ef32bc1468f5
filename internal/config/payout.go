package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PayoutConfig tunes the payout batch generator. It is reloadable at runtime so
// operators can adjust chunk sizes without a restart.
type PayoutConfig struct {
	// ScanChunkSize bounds how many submissions a batch run loads per query.
	ScanChunkSize int `mapstructure:"scanChunkSize"`
	// MinimumAmountCents drops creators whose period total is below this floor.
	// Zero keeps every non-zero total.
	MinimumAmountCents int64 `mapstructure:"minimumAmountCents"`
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		ScanChunkSize:      500,
		MinimumAmountCents: 0,
	}
}

type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

func NewPayoutConfigHolder() (*PayoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("payout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/creatorpay/config")
	v.AddConfigPath("/etc/creatorpay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CREATORPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultPayoutConfig()
		v.SetDefault("payout.scanChunkSize", defaults.ScanChunkSize)
		v.SetDefault("payout.minimumAmountCents", defaults.MinimumAmountCents)
	}

	var cfg PayoutConfig
	if err := v.UnmarshalKey("payout", &cfg); err != nil {
		return nil, err
	}
	if err := validatePayoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutConfig
		if err := v.UnmarshalKey("payout", &updated); err != nil {
			log.Printf("[payout-config] reload failed: %v", err)
			return
		}
		if err := validatePayoutConfig(updated); err != nil {
			log.Printf("[payout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[payout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPayoutConfigHolder wraps a fixed config, with no file watching.
func NewStaticPayoutConfigHolder(cfg PayoutConfig) *PayoutConfigHolder {
	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PayoutConfigHolder) Get() PayoutConfig {
	return h.current.Load().(PayoutConfig)
}

func validatePayoutConfig(cfg PayoutConfig) error {
	if cfg.ScanChunkSize <= 0 {
		return errors.New("payout.scanChunkSize must be positive")
	}
	if cfg.MinimumAmountCents < 0 {
		return errors.New("payout.minimumAmountCents cannot be negative")
	}
	return nil
}
