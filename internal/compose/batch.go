package compose

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"tripreport/internal/core"
	"tripreport/internal/logger"
)

// CaptionAll captions every entry that has images but no caption yet, at most
// Concurrency at a time. It returns the new captions by entry id. One entry
// failing does not stop the others; all failures are joined into the error.
func (c *Composer) CaptionAll(ctx context.Context, entries []core.TripEntry, lang core.Language, settings core.ContextSettings) (map[string]string, error) {
	var (
		mu       sync.Mutex
		captions = make(map[string]string)
		errs     []error
	)

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for _, entry := range entries {
		if len(entry.Images) == 0 || entry.AICaption != "" {
			continue
		}
		g.Go(func() error {
			var caption string
			err := c.tracker.Do(entry.ID, TaskCaption, func() error {
				var err error
				caption, err = c.Caption(ctx, entry.Images, lang, settings)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("Caption failed", "entry_id", entry.ID, "error", err.Error())
				errs = append(errs, fmt.Errorf("entry %s: %w", entry.ID, err))
				return nil
			}
			captions[entry.ID] = caption
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Batch captioning finished", "captioned", len(captions), "failed", len(errs))
	return captions, errors.Join(errs...)
}
