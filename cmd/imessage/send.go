package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/spachava753/imessage/internal/logx"
)

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <handle> <text>...",
		Short: "Send a text message",
		Long: `Send a text message to a phone number, email address or group chat id.
Remaining arguments are joined with spaces.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, text := args[0], strings.Join(args[1:], " ")
			if err := a.automator().Send(cmd.Context(), handle, text); err != nil {
				return err
			}
			a.log.Info("sent", logx.String("handle", handle), logx.Int("chars", len(text)))
			return nil
		},
	}
}

func newSendFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send-file <handle> <path>",
		Short: "Send a file as an attachment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle := args[0]
			path, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("resolve %q: %w", args[1], err)
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}
			if err := a.automator().SendFile(cmd.Context(), handle, path); err != nil {
				return err
			}
			a.log.Info("sent file",
				logx.String("handle", handle),
				logx.String("path", path),
				logx.String("size", humanize.Bytes(uint64(info.Size()))),
			)
			return nil
		},
	}
}
