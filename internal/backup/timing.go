package backup

import (
	"fmt"
	"log/slog"
	"time"
)

// Timed runs fn as the named step and logs how long it took
func Timed(logger *slog.Logger, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("Step failed", "step", step, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return fmt.Errorf("%s: %w", step, err)
	}
	logger.Info("Step finished", "step", step, "elapsed_ms", elapsed.Milliseconds())
	return nil
}
