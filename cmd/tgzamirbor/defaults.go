package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("file_state_dir", "~/.tgzamirbor")

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.group_id", int64(0))
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.max_concurrency", 8)

	viper.SetDefault("relay.greeting", "👋 Hi! Here is everything you need to get started:")

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}
