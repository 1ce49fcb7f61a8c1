package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spachava753/imessage/macos/messages"
)

type chatLister interface {
	RecentChats(ctx context.Context, limit int) ([]messages.Chat, error)
}

func newChatsCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List recent conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := messages.NewChatDB(a.cfg.DBPath)
			defer store.Close()
			return listChats(cmd.Context(), cmd.OutOrStdout(), store, limit, asJSON)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of chats")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func listChats(ctx context.Context, w io.Writer, store chatLister, limit int, asJSON bool) error {
	chats, err := store.RecentChats(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		type chatJSON struct {
			ID          string `json:"id"`
			RecipientID string `json:"recipient_id"`
			ServiceName string `json:"service_name"`
			RoomName    string `json:"room_name,omitempty"`
			DisplayName string `json:"display_name,omitempty"`
		}
		out := make([]chatJSON, 0, len(chats))
		for _, c := range chats {
			out = append(out, chatJSON(c))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECIPIENT\tSERVICE\tNAME\tCHAT ID")
	for _, c := range chats {
		name := c.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.RecipientID, c.ServiceName, name, c.ID)
	}
	return tw.Flush()
}
