package main

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/spachava753/imessage/internal/logx"
	"github.com/spachava753/imessage/macos/messages"
	"github.com/spachava753/imessage/relay"
)

type listenOptions struct {
	json  bool
	echo  bool
	relay bool
}

func newListenCmd(a *app) *cobra.Command {
	var opts listenOptions
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print new messages as they arrive",
		Long: `Poll the Messages database and print every new message until interrupted.

--echo replies to each inbound text with the same text. --relay forwards
messages by email using the relay section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.echo = opts.echo || a.cfg.Echo.Enabled
			opts.relay = opts.relay || a.cfg.Relay.Enabled
			return a.listen(cmd.Context(), cmd.OutOrStdout(), messages.NewChatDB(a.cfg.DBPath), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print one JSON object per line")
	cmd.Flags().BoolVar(&opts.echo, "echo", false, "reply to inbound texts with the same text")
	cmd.Flags().BoolVar(&opts.relay, "relay", false, "forward messages by email")
	return cmd
}

// listen runs a session over store until ctx is done or the session halts.
func (a *app) listen(ctx context.Context, out io.Writer, store *messages.ChatDB, opts listenOptions) error {
	defer store.Close()

	interval, err := a.cfg.Interval()
	if err != nil {
		return err
	}
	margin, err := a.cfg.Margin()
	if err != nil {
		return err
	}

	session := messages.NewSession(store, messages.SessionConfig{
		Codec:       a.codec,
		Interval:    interval,
		Margin:      margin,
		Home:        a.cfg.Home,
		PruneLedger: a.cfg.PruneLedger,
		Log:         a.log,
	})

	var consumers []func(context.Context, <-chan messages.Event) error
	if opts.echo {
		e := &messages.Echo{Sender: a.automator(), Limiter: limiter(a.cfg.Echo.RatePerSec), Log: a.log}
		consumers = append(consumers, e.Run)
	}
	if opts.relay {
		rc := a.cfg.Relay
		r, err := relay.New(relay.Config{
			Addr:          rc.Addr,
			Username:      rc.Username,
			Password:      rc.Password,
			From:          rc.From,
			To:            rc.To,
			IncludeFromMe: rc.IncludeFromMe,
			Insecure:      rc.Insecure,
		}, limiter(rc.RatePerSec), a.log)
		if err != nil {
			return err
		}
		consumers = append(consumers, r.Run)
	}

	// Subscribe everything before Start so the first cycle reaches all of them.
	events, unsubscribe := session.Events().Subscribe(0)
	defer unsubscribe()
	var wg sync.WaitGroup
	for _, run := range consumers {
		ch, _ := session.Events().Subscribe(0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx, ch); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn("consumer stopped", logx.Err(err))
			}
		}()
	}

	session.Start(ctx)
	a.log.Info("listening",
		logx.String("db", store.Path()),
		logx.Duration("interval", interval),
		logx.Bool("echo", opts.echo),
		logx.Bool("relay", opts.relay),
	)

	p := newPrinter(out, opts.json)
	for ev := range events {
		if err := p.print(ev); err != nil {
			return err
		}
	}
	wg.Wait()

	<-session.Done()
	if err := session.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("stopped")
	return nil
}
