package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/glotchimo/keeper/internal/bot"
	"github.com/joho/godotenv"
)

var VERSION = "dev"

type Conf struct {
	Debug         bool          `env:"DEBUG"`
	LogFile       string        `env:"LOG_FILE"`
	LogMaxSizeMB  int           `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	Token         string        `env:"BOT_TOKEN,required"`
	Intents       int           `env:"BOT_INTENTS" envDefault:"33411"`
	DatabaseURL   string        `env:"DATABASE_URL,required"`
	CacheURL      string        `env:"REDIS_URL"`
	MigrationsURL string        `env:"MIGRATIONS_URL" envDefault:"file://migrations"`
	ShardID       int           `env:"SHARD_ID" envDefault:"0"`
	ShardCount    int           `env:"SHARD_COUNT" envDefault:"1"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"900s"`
	DefaultPrefix string        `env:"DEFAULT_PREFIX" envDefault:";"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	var conf Conf
	if err := env.Parse(&conf); err != nil {
		panic(err)
	}

	slog.Info("starting keeper", "version", VERSION)

	bot, err := bot.NewBot(bot.Config{
		Debug:         conf.Debug,
		LogFile:       conf.LogFile,
		LogMaxSizeMB:  conf.LogMaxSizeMB,
		Token:         conf.Token,
		Intents:       conf.Intents,
		DatabaseURL:   conf.DatabaseURL,
		CacheURL:      conf.CacheURL,
		MigrationsURL: conf.MigrationsURL,
		ShardID:       conf.ShardID,
		ShardCount:    conf.ShardCount,
		CacheTTL:      conf.CacheTTL,
		DefaultPrefix: conf.DefaultPrefix,
	})
	if err != nil {
		panic(err)
	}
	defer bot.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}
