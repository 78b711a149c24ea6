// Command relay-chat is a terminal client for a WebSocket chat relay.
//
//	relay-chat [flags] [USERNAME [ADDRESS]]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/client"
	"github.com/omochice/relay-chat/internal/config"
	"github.com/omochice/relay-chat/internal/logging"
	"github.com/omochice/relay-chat/internal/profile"
	"github.com/omochice/relay-chat/internal/terminal"
	"github.com/omochice/relay-chat/pkg/protocol"
)

const (
	historyLimit = 1000
	leaveTimeout = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "relay-chat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	store := profile.NewStore(cfg.Profile)
	self, colorSet := loadIdentity(cfg, store, logger)

	session := terminal.NewSession(self, colorSet)
	printer := terminal.NewPrinter(os.Stdout, self.ID(), color.SupportColor())
	history := chat.NewLog(historyLimit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := client.Connect(ctx, cfg.Address, func(msg protocol.Message) {
		history.Append(msg)
		printer.Message(msg)
	},
		client.WithCodec(codec),
		client.WithLogger(logger),
		client.WithRetryPolicy(client.RetryPolicy{Initial: cfg.Retry.Initial, Max: cfg.Retry.Max}),
		client.WithWriteTimeout(cfg.WriteTimeout),
		client.WithStateHandler(func(s client.State) { printer.Status(s, cfg.Address) }),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer m.Close()

	if err := m.Send(protocol.Join(session.Self())); err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}

	lines := terminal.ReadLines(ctx, os.Stdin)
	quit := false
	for !quit {
		select {
		case <-ctx.Done():
			quit = true
		case <-m.Done():
			quit = true
		case line, ok := <-lines:
			if !ok {
				quit = true
				break
			}
			quit = handleLine(line, session, printer, history, m)
		}
	}

	saveProfile(store, session, logger)
	if err := m.Err(); err != nil {
		return err
	}
	leave(m, session.Self(), logger)
	return nil
}

// handleLine applies one input line and reports whether the user asked to quit.
func handleLine(line string, session *terminal.Session, printer *terminal.Printer, history *chat.Log, m *client.Manager) bool {
	eff, err := session.Handle(line)
	if err != nil {
		printer.Error(err)
		return false
	}
	for _, msg := range eff.Send {
		if err := m.Send(msg); err != nil {
			printer.Error(err)
		}
	}
	if eff.Notice != "" {
		printer.Notice(eff.Notice)
	}
	if eff.History {
		printer.History(history.Snapshot())
	}
	return eff.Quit
}

// loadIdentity builds the session identity. A name given on the command line,
// in the environment or in the config file wins over the saved one.
func loadIdentity(cfg config.Config, store *profile.Store, logger zerolog.Logger) (protocol.Identity, bool) {
	self := protocol.NewIdentity(cfg.Username)

	p, ok, err := store.Load()
	if err != nil {
		logger.Warn().Err(err).Str("path", store.Path()).Msg("ignoring profile")
		return self, false
	}
	if !ok {
		return self, false
	}
	if cfg.UsernameSet {
		p.Name = cfg.Username
	}
	restored, err := p.Apply(self)
	if err != nil {
		logger.Warn().Err(err).Str("path", store.Path()).Msg("ignoring profile")
		return self, false
	}
	return restored, p.Color != ""
}

func saveProfile(store *profile.Store, session *terminal.Session, logger zerolog.Logger) {
	self := session.Self()
	p := profile.Profile{Name: self.Name()}
	if session.ColorSet() {
		p.Color = self.Color().Hex()
	}
	if err := store.Save(p); err != nil {
		logger.Warn().Err(err).Str("path", store.Path()).Msg("failed to save profile")
	}
}

// leave announces the departure and waits briefly for it to reach the relay.
func leave(m *client.Manager, self protocol.Identity, logger zerolog.Logger) {
	if err := m.Send(protocol.Leave(self)); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		logger.Debug().Err(err).Msg("leave not delivered")
	}
}
