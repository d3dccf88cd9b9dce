package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/passlink/credmine"
	"github.com/passlink/credmine/internal/logging"
	"github.com/passlink/credmine/notify"
	"github.com/passlink/credmine/search"
	"github.com/passlink/credmine/settings"
	"github.com/passlink/credmine/tabs"
)

const maxMessageBytes = 1 << 20

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process capture messages read as JSON lines from stdin",
		Long: `Reads one JSON message per line from stdin:

  {"type":"capture","tab":"7","title":"Example","user":{"value":"bob"},"password":{"value":"secret1"},"url":"https://example.com"}
  {"type":"autofill","tab":"7","ids":["<credential id>"]}
  {"type":"close_tab","tab":"7"}

Each capture prints "queued" or "skipped". Pending tasks are processed until
they finish or the command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMiner(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			defer m.close()
			if err := m.consume(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			return m.drain(cmd.Context())
		},
	}
}

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var c credmine.Capture
	var user, password string
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Submit a single captured login and process it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			if cmd.Flags().Changed("user") {
				c.User = &credmine.CapturedField{Value: user}
			}
			c.Password = credmine.CapturedField{Value: password}

			m, err := openMiner(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			defer m.close()
			m.submit(cmd.Context(), cmd.OutOrStdout(), c)
			return m.drain(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&c.ID, "id", "", "Capture key (random when empty)")
	cmd.Flags().StringVar(&c.Title, "title", "", "Page title used as the credential label")
	cmd.Flags().StringVar(&c.URL, "url", "", "Page URL")
	cmd.Flags().BoolVar(&c.Hidden, "hidden", false, "Store the credential in the private folder")
	cmd.Flags().StringVar(&user, "user", "", "Captured username")
	cmd.Flags().StringVar(&password, "password", "", "Captured password")
	return cmd
}

// miner is a running pipeline: storage, index, queue and manager.
type miner struct {
	log     *slog.Logger
	lock    *flock.Flock
	manager *credmine.Manager
	tabs    *tabs.Registry
	closers []io.Closer
	decoder *messageDecoder
}

func openMiner(ctx context.Context, cc *commandContext) (*miner, error) {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return nil, err
	}
	base, err := cc.logger()
	if err != nil {
		return nil, err
	}
	m := &miner{log: logging.NewComponentLogger(base, "miner"), tabs: tabs.NewRegistry()}

	// one processor per credential store
	m.lock = flock.New(cfg.Storage.Path + ".run.lock")
	ok, err := m.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another credmine process is using %s", cfg.Storage.Path)
	}

	if m.decoder, err = newMessageDecoder(); err != nil {
		m.close()
		return nil, err
	}
	store, err := cc.openStore(ctx)
	if err != nil {
		m.close()
		return nil, err
	}
	m.closers = append(m.closers, store)

	queue, err := cc.openQueue(ctx)
	if err != nil {
		m.close()
		return nil, err
	}
	m.closers = append(m.closers, queue)

	cache, _, err := cc.openSettings()
	if err != nil {
		m.close()
		return nil, err
	}
	delay, err := cache.Duration(ctx, settings.MiningRetryDelay)
	if err != nil {
		m.close()
		return nil, err
	}
	maxAttempts, err := cache.Int(ctx, settings.MiningRetryMax)
	if err != nil {
		m.close()
		return nil, err
	}

	index := search.NewMemoryIndex()
	n, err := credmine.Reindex(ctx, store, index)
	if err != nil {
		m.close()
		return nil, err
	}
	m.log.Info("credential index loaded", slog.Int("credentials", n))

	m.manager = credmine.New(queue, store, index,
		credmine.WithLogger(credmine.NewSlogLogger(logging.NewComponentLogger(base, "manager"))),
		credmine.WithNotifier(notify.New(cfg.Notifications.NtfyTopic, secondsDuration(cfg.Notifications.RequestTimeout))),
		credmine.WithTabs(m.tabs),
		credmine.WithRetryDelay(delay),
		credmine.WithMaxAttempts(int(maxAttempts)),
		credmine.WithMiddleware(logCycles(m.log)),
	)
	resumed, err := m.manager.Resume(ctx)
	if err != nil {
		m.close()
		return nil, err
	}
	if resumed > 0 {
		m.log.Info("resumed pending tasks", slog.Int("tasks", resumed))
	}
	return m, nil
}

// consume reads messages until EOF. Malformed lines are logged and skipped.
func (m *miner) consume(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageBytes)
	line := 0
	for scanner.Scan() {
		line++
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		msg, err := m.decoder.Decode(raw)
		if err != nil {
			m.log.Warn("skipping input line", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		switch msg.Type {
		case messageCapture:
			m.submit(ctx, out, msg.Capture)
		case messageAutofill:
			m.tabs.For(msg.TabID).Set(tabs.AutofillIDs, msg.IDs)
		case messageCloseTab:
			m.tabs.Close(msg.TabID)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func (m *miner) submit(ctx context.Context, out io.Writer, c credmine.Capture) {
	status := "skipped"
	if m.manager.AddPassword(ctx, c) {
		status = "queued"
	}
	fmt.Fprintf(out, "%s\t%s\n", status, c.URL)
}

// drain waits for pending cycles, or cancels them when ctx ends.
func (m *miner) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.manager.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		m.log.Info("interrupted; unfinished tasks stay queued")
		m.manager.Close()
		<-done
		return ctx.Err()
	}
}

func (m *miner) close() {
	if m.manager != nil {
		m.manager.Close()
	}
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			m.log.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	if m.lock != nil {
		_ = m.lock.Unlock()
	}
}

// logCycles logs the outcome of every processing cycle.
func logCycles(log *slog.Logger) credmine.Middleware {
	return func(next credmine.CycleFunc) credmine.CycleFunc {
		return func(ctx context.Context, t *credmine.Task) (*credmine.Task, error) {
			got, err := next(ctx, t)
			id, attempt, _ := credmine.CycleInfo(ctx)
			attrs := []any{slog.String("task", id), slog.Int("attempt", attempt)}
			if err != nil {
				log.Debug("cycle failed", append(attrs, slog.String("error", err.Error()))...)
				return got, err
			}
			log.Debug("cycle finished", append(attrs, slog.String("state", got.State().String()))...)
			return got, nil
		}
	}
}
