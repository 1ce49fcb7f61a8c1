package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/spachava753/imessage/internal/config"
	"github.com/spachava753/imessage/internal/logx"
	"github.com/spachava753/imessage/macos/messages"
)

var (
	version = "dev"
	commit  = "unknown"
)

// fallbackVersion is assumed when sw_vers is unavailable.
var fallbackVersion = messages.Version{Major: 11}

// app carries state shared by every subcommand once setup has run.
type app struct {
	cfg       *config.Config
	log       logx.Logger
	osVersion messages.Version
	codec     messages.Codec
	getenv    func(string) string
	detect    func(context.Context) (messages.Version, error)
}

func newApp() *app {
	return &app{getenv: os.Getenv, detect: messages.DetectVersion, log: logx.Nop()}
}

func newRootCmd() *cobra.Command {
	a := newApp()
	var (
		cfgPath string
		verbose bool
	)

	root := &cobra.Command{
		Use:   "imessage",
		Short: "Watch and send iMessages from the terminal",
		Long: `imessage polls the local Messages database for new messages and drives
Messages.app to send texts and files. It runs on macOS only and needs Full
Disk Access to read ~/Library/Messages/chat.db.`,
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), cfgPath, verbose)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.log.Close()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file path (YAML or JSON)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newListenCmd(a),
		newSendCmd(a),
		newSendFileCmd(a),
		newHandleCmd(a),
		newNameCmd(a),
		newChatsCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context, cfgPath string, verbose bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(a.getenv)
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.log = logx.New(logx.Config{Level: cfg.Log.Level, Console: cfg.Log.Console, File: cfg.Log.File})

	v, err := a.detect(ctx)
	if err != nil {
		a.log.Warn("macOS version unknown, assuming "+fallbackVersion.String(), logx.Err(err))
		v = fallbackVersion
	}
	a.osVersion = v
	a.codec = messages.NewCodec(v)

	packed, auto, _ := cfg.Packed()
	if !auto {
		a.codec.Packed = packed
	}
	a.log.Debug("configured",
		logx.String("macos", v.String()),
		logx.Bool("packed", a.codec.Packed),
		logx.String("db", cfg.DBPath),
	)
	return nil
}

func (a *app) automator() *messages.Automator {
	return messages.NewAutomator(a.osVersion)
}

// limiter returns nil (unlimited) when perSec is not positive.
func limiter(perSec int) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), perSec)
}
