package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/setevik/communicatord/internal/config"
	"github.com/setevik/communicatord/internal/flags"
)

// Notifier pushes high-priority flags to an ntfy server.
type Notifier struct {
	cfg    *config.Config
	client *http.Client
}

// NewNotifier creates a Notifier.
func NewNotifier(cfg *config.Config) *Notifier {
	return &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Notify pushes a flag notification to ntfy if the flag's priority reaches
// the configured notification threshold.
func (n *Notifier) Notify(ctx context.Context, f *flags.Flag) error {
	if n.cfg.Ntfy.URL == "" {
		slog.Debug("ntfy URL not configured, skipping notification")
		return nil
	}

	if !n.cfg.ShouldNotify(f.Priority()) {
		slog.Debug("flag priority below notification threshold, skipping",
			"priority", f.Priority(), "threshold", n.cfg.Ntfy.NotifyAt)
		return nil
	}

	title := FormatTitle(f)
	body := FormatBody(f)
	priority := n.cfg.NtfyPriority(f.Priority())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Ntfy.URL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating ntfy request: %w", err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", NtfyTags(f))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}

	slog.Info("notification sent",
		"unit", f.Unit(), "section", f.Section(), "name", f.Name(), "priority", priority)
	return nil
}
