package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and detected macOS capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			class := "buddy"
			if a.automator().Participants {
				class = "participant"
			}
			fmt.Fprintf(w, "imessage %s (commit: %s)\n", version, commit)
			fmt.Fprintf(w, "macOS:             %s\n", a.osVersion)
			fmt.Fprintf(w, "packed timestamps: %t\n", a.codec.Packed)
			fmt.Fprintf(w, "scripting class:   %s\n", class)
			fmt.Fprintf(w, "database:          %s\n", a.cfg.DBPath)
			return nil
		},
	}
}
