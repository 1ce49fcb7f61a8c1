package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"golang.org/x/time/rate"

	"github.com/spachava753/imessage/internal/logx"
	"github.com/spachava753/imessage/macos/messages"
)

// Config describes the SMTP submission target.
type Config struct {
	// Addr is host:port. Port 465 uses implicit TLS, other ports STARTTLS.
	Addr     string
	Username string
	Password string
	From     string
	To       []string
	// IncludeFromMe also forwards messages sent from this Mac.
	IncludeFromMe bool
	// Insecure disables TLS entirely. Only for local test servers.
	Insecure bool
}

// Relay forwards message events as plain-text emails.
type Relay struct {
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time
}

// New validates cfg and returns a Relay. limiter may be nil.
func New(cfg Config, limiter *rate.Limiter, log logx.Logger) (*Relay, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("relay: smtp address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, fmt.Errorf("relay: invalid smtp address %q: %w", cfg.Addr, err)
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("relay: sender address is required")
	}
	if len(uniqueRecipients(cfg.To)) == 0 {
		return nil, errors.New("relay: at least one recipient is required")
	}
	return &Relay{
		cfg:     cfg,
		limiter: limiter,
		log:     log.With(logx.String("comp", "relay")),
		now:     time.Now,
	}, nil
}

// Run forwards events until the channel closes or ctx is done. Delivery
// failures are logged and skipped.
func (r *Relay) Run(ctx context.Context, events <-chan messages.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != messages.EventMessage {
				continue
			}
			if ev.Message.FromMe && !r.cfg.IncludeFromMe {
				continue
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if err := r.Forward(ctx, ev.Message); err != nil {
				r.log.Warn("forward failed", logx.String("guid", ev.Message.GUID), logx.Err(err))
				continue
			}
			r.log.Debug("forwarded", logx.String("guid", ev.Message.GUID), logx.String("handle", ev.Message.Handle))
		}
	}
}

// Forward sends one message as an email.
func (r *Relay) Forward(ctx context.Context, msg messages.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := buildEmail(r.cfg.From, uniqueRecipients(r.cfg.To), msg, generateMessageID(r.cfg.From), r.now())

	c, err := r.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Mail(r.cfg.From, nil); err != nil {
		return fmt.Errorf("relay: MAIL FROM failed: %w", err)
	}
	for _, rcpt := range uniqueRecipients(r.cfg.To) {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("relay: RCPT TO %q failed: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("relay: DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("relay: writing message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("relay: finalizing message failed: %w", err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("relay: QUIT failed: %w", err)
	}
	return nil
}

// connect dials the server and authenticates. The connection is closed if
// ctx is cancelled before the caller closes the client.
func (r *Relay) connect(ctx context.Context) (*client, error) {
	host, port, _ := net.SplitHostPort(r.cfg.Addr)
	tlsConfig := &tls.Config{ServerName: host}

	var (
		conn net.Conn
		err  error
	)
	if port == "465" && !r.cfg.Insecure {
		d := &tls.Dialer{Config: tlsConfig}
		conn, err = d.DialContext(ctx, "tcp", r.cfg.Addr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", r.cfg.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("relay: SMTP dial failed: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	c := smtp.NewClient(conn)
	if port != "465" && !r.cfg.Insecure {
		if err := c.StartTLS(tlsConfig); err != nil {
			stop()
			c.Close()
			return nil, fmt.Errorf("relay: STARTTLS failed: %w", err)
		}
	}

	if r.cfg.Username != "" {
		auth := sasl.NewPlainClient("", r.cfg.Username, r.cfg.Password)
		if err := c.Auth(auth); err != nil {
			stop()
			c.Close()
			return nil, fmt.Errorf("relay: SMTP auth failed: %w", err)
		}
	}
	return &client{Client: c, stop: stop}, nil
}

// client releases the cancellation hook along with the connection.
type client struct {
	*smtp.Client
	stop func() bool
}

func (c *client) Close() error {
	c.stop()
	return c.Client.Close()
}
