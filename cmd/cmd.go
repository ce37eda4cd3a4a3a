package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kodokojo/eventgate/config"
	"github.com/urfave/cli/v2"
)

const ServiceName = "eventgate"

func Run() error {
	app := &cli.App{
		Name:  ServiceName,
		Usage: "API gateway bridging HTTP clients to the event bus",
		Commands: []*cli.Command{
			serverCmd(),
			monitorCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			flags := config.Flags()
			if err := flags.Parse(c.Args().Slice()); err != nil {
				return err
			}
			cfg, err := config.LoadConfig(c.String("config_file"), flags)
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}
