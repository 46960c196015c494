package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"personal/fluxer_go/src/fluxer"
	"personal/fluxer_go/src/gateway"
	"personal/fluxer_go/src/state"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fluxer_go",
		Short: "Example bot for the Fluxer chat platform",
	}
	cmd.AddCommand(runCmd())
	cmd.AddCommand(sendCmd())
	cmd.AddCommand(guildsCmd())
	return cmd
}

// loadToken reads FLUXER_TOKEN, loading .env first if present.
func loadToken() (string, error) {
	_ = godotenv.Load()
	token := os.Getenv("FLUXER_TOKEN")
	if token == "" {
		return "", fmt.Errorf("FLUXER_TOKEN is not set")
	}
	return token, nil
}

func apiClient() (*fluxer.Client, error) {
	token, err := loadToken()
	if err != nil {
		return nil, err
	}
	var opts []fluxer.Option
	if base := os.Getenv("FLUXER_API_URL"); base != "" {
		opts = append(opts, fluxer.WithBaseURL(base))
	}
	return fluxer.New(token, opts...), nil
}

func runCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and answer !ping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), prefix)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "!", "command prefix")
	return cmd
}

func runBot(ctx context.Context, prefix string) error {
	token, err := loadToken()
	if err != nil {
		return err
	}
	api, err := apiClient()
	if err != nil {
		return err
	}

	gatewayURL, err := api.GatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("could not resolve gateway URL: %w", err)
	}

	sess := gateway.NewSession(token, gatewayURL,
		gateway.WithIntents(gateway.IntentsDefault|gateway.IntentGuildMembers),
	)

	cache := state.New(0, nil)
	cache.Attach(sess)

	sess.On("READY", func(data json.RawMessage) {
		slog.Info("bot is ready", "guilds", len(cache.GuildIDs()))
	})
	sess.On("GUILD_MEMBER_ADD", func(data json.RawMessage) {
		member := fluxer.NewMember(decodeRecord(data), api)
		slog.Info("member joined", "member", member.DisplayName(), "guild", member.GuildID())
	})
	sess.On("MESSAGE_CREATE", func(data json.RawMessage) {
		msg := fluxer.NewMessage(decodeRecord(data), api)
		if author := msg.Author(); author == nil || author.Bot() {
			return
		}
		if strings.TrimSpace(msg.Content()) == prefix+"ping" {
			if _, err := msg.Reply(ctx, "pong"); err != nil {
				slog.Warn("could not reply", "error", err)
			}
		}
	})

	// Ctrl-C closes the session, which ends Run.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		sess.Close()
	}()

	return sess.Run(ctx)
}

func decodeRecord(data json.RawMessage) fluxer.Record {
	var rec fluxer.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		slog.Warn("could not decode event payload", "error", err)
	}
	return rec
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <channel-id> <text>",
		Short: "Send a message to a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient()
			if err != nil {
				return err
			}
			msg, err := api.SendMessage(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("sent message %s\n", msg.ID())
			return nil
		},
	}
}

func guildsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guilds",
		Short: "List the guilds the bot is a member of",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := apiClient()
			if err != nil {
				return err
			}
			guilds, err := api.Guilds(cmd.Context())
			if err != nil {
				return err
			}
			for _, g := range guilds {
				fmt.Printf("%s\t%s\t%d members\n", g.ID(), g.Name(), g.MemberCount())
			}
			return nil
		},
	}
}
