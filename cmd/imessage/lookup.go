package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spachava753/imessage/macos/messages"
)

func newHandleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "handle <name>",
		Short: "Print the handle for a contact name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := a.automator().HandleForName(cmd.Context(), args[0])
			if errors.Is(err, messages.ErrNotFound) {
				return fmt.Errorf("no contact named %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), handle)
			return nil
		},
	}
}

func newNameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "name <handle>",
		Short: "Print the contact name for a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := a.automator().NameForHandle(cmd.Context(), args[0])
			if errors.Is(err, messages.ErrNotFound) {
				return fmt.Errorf("no contact with handle %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}
