package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/neurocanvas-backend/internal/app"
	"github.com/yungbote/neurocanvas-backend/internal/config"
	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

var cfgFile string

func main() {
	_ = godotenv.Load(".env")

	v := config.NewViper()
	rootCmd := &cobra.Command{
		Use:           "neurocanvas",
		Short:         "NeuroCanvas content generation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return readConfigFile(v)
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("port", v.GetString("port"), "HTTP listen port")
	rootCmd.PersistentFlags().String("log-mode", v.GetString("log.mode"), "Log mode (development, production, test)")
	bindFlag(v, rootCmd, "port", "port")
	bindFlag(v, rootCmd, "log.mode", "log-mode")

	rootCmd.AddCommand(serveCmd(v), migrateCmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and media pollers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, log, cfg)
			if err != nil {
				log.Error("app init failed", "error", err)
				return err
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}

func migrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load(v)
			if err != nil {
				return err
			}
			defer log.Sync()

			gdb, err := app.OpenDB(log, cfg, true)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				_ = sqlDB.Close()
			}
			log.Info("migrations applied", "driver", cfg.DB.Driver)
			return nil
		},
	}
}

func load(v *viper.Viper) (config.AppConfig, *logger.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return config.AppConfig{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func readConfigFile(v *viper.Viper) error {
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("config file %s not found", cfgFile)
		}
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
