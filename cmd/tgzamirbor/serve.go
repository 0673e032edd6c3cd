package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Saipa12/TgZamirBor/internal/configutil"
	"github.com/Saipa12/TgZamirBor/internal/fsstore"
	"github.com/Saipa12/TgZamirBor/internal/logutil"
	"github.com/Saipa12/TgZamirBor/internal/relay"
	"github.com/Saipa12/TgZamirBor/internal/statepaths"
	"github.com/Saipa12/TgZamirBor/internal/telegram"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay: poll Telegram and mirror chats into the staff group",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := configutil.FlagOrViperString(cmd, "telegram-bot-token", "telegram.bot_token")
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via --telegram-bot-token or %s_TELEGRAM_BOT_TOKEN)", envPrefix)
			}
			groupID := configutil.FlagOrViperInt64(cmd, "telegram-group-id", "telegram.group_id")
			if groupID == 0 {
				return fmt.Errorf("missing telegram.group_id (set via --telegram-group-id or %s_TELEGRAM_GROUP_ID)", envPrefix)
			}
			pollTimeout := configutil.FlagOrViperDuration(cmd, "telegram-poll-timeout", "telegram.poll_timeout")
			if pollTimeout <= 0 {
				pollTimeout = 30 * time.Second
			}
			maxConc := configutil.FlagOrViperInt(cmd, "telegram-max-concurrency", "telegram.max_concurrency")
			if maxConc <= 0 {
				maxConc = 8
			}
			greeting := configutil.FlagOrViperString(cmd, "greeting", "relay.greeting")

			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			stateDir := statepaths.StateDir()
			if err := fsstore.EnsureDir(stateDir, 0); err != nil {
				return err
			}

			baseURL := "https://api.telegram.org"
			httpClient := &http.Client{Timeout: 60 * time.Second}
			api := telegram.NewClient(httpClient, baseURL, token)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			me, err := api.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("telegram getMe: %w", err)
			}

			topics := relay.NewTopicRegistry(statepaths.TopicStatePath(), groupID, api)
			messages := relay.NewMessageMap(statepaths.MessageMapPath())
			welcome := relay.NewWelcomeSet(statepaths.WelcomeMediaPath())
			// A state file that exists but fails to decode aborts startup;
			// silently starting empty would discard the relay's history.
			if err := topics.Load(); err != nil {
				return err
			}
			if err := messages.Load(); err != nil {
				return err
			}
			if err := welcome.Load(); err != nil {
				return err
			}

			router := relay.NewRouter(relay.Config{
				GroupID:  groupID,
				BotID:    me.ID,
				Greeting: greeting,
			}, api, topics, messages, welcome, logger)

			logger.Info("relay_start",
				"bot_username", me.Username,
				"bot_id", me.ID,
				"group_id", groupID,
				"state_dir", stateDir,
				"poll_timeout", pollTimeout.String(),
				"max_concurrency", maxConc,
				"welcome_capturing", welcome.Capturing(),
			)

			sem := make(chan struct{}, maxConc)
			var offset int64
			for {
				updates, nextOffset, err := api.GetUpdates(ctx, offset, pollTimeout)
				if err != nil {
					if errors.Is(err, context.Canceled) || ctx.Err() != nil {
						logger.Info("relay_stop", "reason", "context_canceled")
						return nil
					}
					if telegram.IsPollTimeoutError(err) {
						logger.Debug("telegram_get_updates_timeout", "error", err.Error())
					} else {
						logger.Warn("telegram_get_updates_error", "error", err.Error())
					}
					time.Sleep(1 * time.Second)
					continue
				}
				offset = nextOffset

				for _, u := range updates {
					sem <- struct{}{}
					go func(u telegram.Update) {
						defer func() { <-sem }()
						if err := router.HandleUpdate(ctx, u); err != nil {
							logger.Warn("relay_event_error", "update_id", u.UpdateID, "error", err.Error())
						}
					}(u)
				}
			}
		},
	}

	cmd.Flags().String("telegram-bot-token", "", "Telegram bot token.")
	cmd.Flags().Int64("telegram-group-id", 0, "Staff forum supergroup id conversations are mirrored into.")
	cmd.Flags().Duration("telegram-poll-timeout", 30*time.Second, "Long polling timeout for getUpdates.")
	cmd.Flags().Int("telegram-max-concurrency", 8, "Max number of updates handled concurrently.")
	cmd.Flags().String("greeting", "", "Greeting text sent on /start (defaults to relay.greeting).")

	return cmd
}
