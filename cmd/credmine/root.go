package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/passlink/credmine"
	"github.com/passlink/credmine/internal/config"
	"github.com/passlink/credmine/internal/logging"
	"github.com/passlink/credmine/settings"
	"github.com/passlink/credmine/storage/sqlite"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "credmine",
		Short:         "Turn captured logins into stored credentials",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newCaptureCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))
	return rootCmd
}

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// openQueue opens the configured Feedback Queue, creating the directory of a
// sqlite database when needed.
func (c *commandContext) openQueue(ctx context.Context) (credmine.Queue, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if path, ok := strings.CutPrefix(cfg.Queue.DSN, credmine.DialectSQLite+"://"); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}
	return credmine.OpenQueue(ctx, cfg.Queue.DSN, cfg.Queue.Name)
}

func (c *commandContext) openStore(ctx context.Context) (*sqlite.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return sqlite.Open(ctx, cfg.Storage.Path)
}

// openSettings returns the setting cache backed by the settings file. The
// [mining] config section provides the defaults a stored override replaces.
func (c *commandContext) openSettings() (*settings.Cache, *settings.FileBackend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	defaults := settings.Defaults()
	defaults[settings.MiningRetryDelay] = (time.Duration(cfg.Mining.RetryDelayMs) * time.Millisecond).String()
	defaults[settings.MiningRetryMax] = int64(cfg.Mining.MaxAttempts)

	if err := os.MkdirAll(filepath.Dir(cfg.Settings.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create settings directory: %w", err)
	}
	backend, err := settings.OpenFileBackend(cfg.Settings.Path, defaults)
	if err != nil {
		return nil, nil, err
	}
	return settings.New(backend), backend, nil
}
