package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"github.com/webitel/live-relay-service/config"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

const (
	ServiceName      = "live-relay-service"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	model.ServerVersion = version

	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Relays TikTok live events to WebSocket subscribers",
		Version: version,
		Commands: []*cli.Command{
			serverCmd(),
			versionCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the relay and health servers",
		// Flags are parsed by config.LoadConfig so viper can bind them.
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			cfg, err := config.LoadConfig(c.Args().Slice())
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			startCtx, cancel := context.WithTimeout(c.Context, 30*time.Second)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			stopCtx, cancelStop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancelStop()
			return app.Stop(stopCtx)
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(c *cli.Context) error {
			_, err := c.App.Writer.Write([]byte(
				"version: " + version + "\n" +
					"commit: " + commit + "\n" +
					"commit_date: " + commitDate + "\n" +
					"branch: " + branch + "\n" +
					"build_timestamp: " + buildTimestamp + "\n",
			))
			return err
		},
	}
}
