package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tyrowin/gorelay/internal/codec"
	"github.com/Tyrowin/gorelay/internal/ids"
	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

var log = logging.GetLogger()

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("relay_exited")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := server.NewViper()
	var configFile string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Stateful TCP message relay",
		Long: `Relay accepts peers over TCP (one message per line) and WebSocket,
lets each pick a message codec (json or yaml) with its first line, and routes
their messages: broadcast, to named peers, or to server commands
(list peers, quit, deny).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			}
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Configuration file (yaml, json or toml)")
	flags.String("addr", server.DefaultConfig().Addr, "TCP relay listen address")
	flags.String("http-addr", server.DefaultConfig().HTTPAddr, "HTTP listen address for health, metrics and WebSocket (empty disables)")
	flags.String("log-level", server.DefaultConfig().LogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", server.DefaultConfig().LogFormat, "Log format: text or json")

	for key, flag := range map[string]string{
		"addr":       "addr",
		"http_addr":  "http-addr",
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := server.LoadConfig(v)
	if err != nil {
		return err
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	hub := relay.NewHub(relay.Config{
		Codecs:   codec.Default(),
		IDs:      ids.NewGenerator(),
		Observer: server.TrafficObserver,
	})
	srv := server.NewServer(cfg, hub)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("Relay ready on %s\n", srv.Addr())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return srv.Shutdown(shutdownTimeout)
}
