package main

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfDefaults(t *testing.T) {
	conf, err := env.ParseAsWithOptions[Conf](env.Options{Environment: map[string]string{
		"BOT_TOKEN":    "token",
		"DATABASE_URL": "postgres://localhost/keeper",
	}})
	require.NoError(t, err)

	assert.Equal(t, 33411, conf.Intents)
	assert.Equal(t, 900*time.Second, conf.CacheTTL)
	assert.Equal(t, ";", conf.DefaultPrefix)
	assert.Equal(t, "file://migrations", conf.MigrationsURL)
	assert.Equal(t, 1, conf.ShardCount)
	assert.Empty(t, conf.CacheURL)
	assert.Empty(t, conf.LogFile)
	assert.Equal(t, 100, conf.LogMaxSizeMB)
}

func TestConfRequiresToken(t *testing.T) {
	_, err := env.ParseAsWithOptions[Conf](env.Options{Environment: map[string]string{
		"DATABASE_URL": "postgres://localhost/keeper",
	}})
	assert.Error(t, err)
}
