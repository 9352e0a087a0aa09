package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// runConfig holds the synthetic-workload parameters. Every field can be
// set by flag or environment variable (NANOKERNELCTL_*); viper resolves
// them in that order of precedence. No config file is read.
type runConfig struct {
	NCPU      int  `mapstructure:"ncpu"`
	PageSize  int  `mapstructure:"page_size"`
	HeapSize  int  `mapstructure:"heap_size"`
	NBuf      int  `mapstructure:"nbuf"`
	NBucket   int  `mapstructure:"nbucket"`
	BlockSize int  `mapstructure:"block_size"`
	Iters     int  `mapstructure:"iterations"`
	Verbose   bool `mapstructure:"verbose"`
}

func loadRunConfig(v *viper.Viper) (*runConfig, error) {
	var cfg runConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("nanokernelctl: unmarshal config: %w", err)
	}
	if cfg.NCPU <= 0 {
		return nil, fmt.Errorf("nanokernelctl: ncpu must be positive, got %d", cfg.NCPU)
	}
	if cfg.HeapSize < cfg.PageSize {
		return nil, fmt.Errorf("nanokernelctl: heap_size must be at least page_size")
	}
	return &cfg, nil
}
