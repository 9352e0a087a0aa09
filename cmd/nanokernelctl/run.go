package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("nanokernelctl")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic concurrent alloc/free and read/write/release workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(v)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Verbose)
			return runWorkload(context.Background(), cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.Int("ncpu", 4, "number of CPU shards/workers")
	flags.Int("page-size", 4096, "page size in bytes")
	flags.Int("heap-size", 4096*256, "arena size in bytes")
	flags.Int("nbuf", 32, "number of cache buffers")
	flags.Int("nbucket", 13, "number of cache buckets")
	flags.Int("block-size", 4096, "block device block size in bytes")
	flags.Int("iterations", 1000, "iterations per worker")
	flags.Bool("verbose", false, "enable debug logging")

	_ = v.BindPFlag("ncpu", flags.Lookup("ncpu"))
	_ = v.BindPFlag("page_size", flags.Lookup("page-size"))
	_ = v.BindPFlag("heap_size", flags.Lookup("heap-size"))
	_ = v.BindPFlag("nbuf", flags.Lookup("nbuf"))
	_ = v.BindPFlag("nbucket", flags.Lookup("nbucket"))
	_ = v.BindPFlag("block_size", flags.Lookup("block-size"))
	_ = v.BindPFlag("iterations", flags.Lookup("iterations"))
	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))

	return cmd
}
