package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/setevik/communicatord/internal/flags"
)

// CooldownResult describes whether a raise should be pushed to operators.
type CooldownResult struct {
	// ShouldNotify is true if this raise should trigger a notification.
	ShouldNotify bool
	// RecentCount is the number of raises of the same triple within the
	// cooldown window, this one excluded.
	RecentCount int
}

// CheckCooldown suppresses repeat notifications for a flag that keeps being
// re-raised: the first raise of a triple within the window notifies, later
// ones stay quiet. The flag file's own occurrence count still advances on
// every save, so nothing is lost, only the push is deduplicated.
func (d *DB) CheckCooldown(f *flags.Flag, window time.Duration) (CooldownResult, error) {
	since := time.Now().Add(-window).UTC().Format(time.RFC3339Nano)

	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM transitions
		WHERE unit = ? AND section = ? AND name = ? AND action = ? AND created_at >= ?`,
		f.Unit(), f.Section(), f.Name(), string(ActionRaise), since,
	).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return CooldownResult{}, fmt.Errorf("checking cooldown: %w", err)
	}

	result := CooldownResult{
		ShouldNotify: count == 0,
		RecentCount:  count,
	}

	slog.Debug("cooldown check",
		"unit", f.Unit(),
		"section", f.Section(),
		"name", f.Name(),
		"recent_count", count,
		"should_notify", result.ShouldNotify,
	)

	return result, nil
}
