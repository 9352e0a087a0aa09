package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRunConfigDefaults(t *testing.T) {
	v := viper.New()
	v.SetDefault("ncpu", 4)
	v.SetDefault("page_size", 4096)
	v.SetDefault("heap_size", 4096*256)
	v.SetDefault("nbuf", 32)
	v.SetDefault("nbucket", 13)
	v.SetDefault("block_size", 4096)
	v.SetDefault("iterations", 1000)

	cfg, err := loadRunConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.NCPU)
	assert.Equal(t, 32, cfg.NBuf)
}

func TestLoadRunConfigRejectsNonPositiveNCPU(t *testing.T) {
	v := viper.New()
	v.SetDefault("ncpu", 0)
	v.SetDefault("page_size", 4096)
	v.SetDefault("heap_size", 4096)

	_, err := loadRunConfig(v)
	assert.Error(t, err)
}

func TestLoadRunConfigRejectsHeapSmallerThanPage(t *testing.T) {
	v := viper.New()
	v.SetDefault("ncpu", 1)
	v.SetDefault("page_size", 4096)
	v.SetDefault("heap_size", 100)

	_, err := loadRunConfig(v)
	assert.Error(t, err)
}
