package utils

import (
	"context"
	"fmt"
	"io"
	"time"
)

func formatRemaining(remaining time.Duration) string {
	total := int(remaining / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// StartCountdown blocks for total, redrawing the remaining time on w every tick.
// It returns ctx.Err() if ctx is canceled first.
func StartCountdown(ctx context.Context, w io.Writer, total time.Duration, tick time.Duration) error {
	if total <= 0 {
		return nil
	}
	if tick <= 0 {
		tick = time.Second
	}

	hours := total.Hours()
	if hours >= 0.01 {
		Logf(StatusInfo, "Starting %.2f hour countdown until the next run", hours)
	} else {
		Logf(StatusInfo, "Starting %s countdown until the next run", total)
	}

	deadline := time.Now().Add(total)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Fprintln(w)
			Logf(StatusSuccess, "Countdown finished, starting the next run")
			return nil
		}

		fmt.Fprintf(w, "\r[%s] Countdown: %s   ", BrandName, formatRemaining(remaining.Round(time.Second)))

		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
