package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/colcompare/internal/application"
	"github.com/JonMunkholm/colcompare/internal/config"
	"github.com/JonMunkholm/colcompare/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var (
		envFile string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web form and JSON API",
		Long: `Run the HTTP server. Settings come from the environment (see SERVER_*, UPLOAD_*,
COMPARE_*, RATE_LIMIT_*, LOG_* variables), optionally loaded from an env file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Overload(envFile); err != nil {
				slog.Info("no env file loaded, using environment variables", "file", envFile)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return application.New(cfg).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file to load before reading configuration")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port, overrides SERVER_PORT")
	return cmd
}
