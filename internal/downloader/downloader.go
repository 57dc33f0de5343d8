// Package downloader exports newly ingested image payloads to local files,
// tracking progress through a high-water timestamp persisted between runs.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"patentes-service/internal/config"
	"patentes-service/internal/domain/detection"
	"patentes-service/internal/service"
)

type Downloader struct {
	queryService *service.QueryService
	outputDir    string
	stateFile    string
	log          zerolog.Logger
}

func New(queryService *service.QueryService, cfg *config.Config, log zerolog.Logger) *Downloader {
	return &Downloader{
		queryService: queryService,
		outputDir:    cfg.Downloader.OutputDir,
		stateFile:    cfg.Downloader.StateFile,
		log:          log,
	}
}

// Run fetches everything newer than the persisted timestamp and writes each
// payload to disk. The timestamp advances only past rows actually seen, so
// a failed write never skips rows on the next run.
func (d *Downloader) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	last, err := d.readLastTimestamp()
	if err != nil {
		return err
	}

	rows, err := d.queryService.NewImagesForDownload(ctx, last)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		d.log.Info().Msg("no new images")
		return nil
	}

	var highWater *time.Time
	saved := 0
	for _, row := range rows {
		if row.Data == nil {
			d.log.Debug().Str("image_id", row.ImageID.String()).Msg("skipping image with no payload")
			continue
		}

		name := fmt.Sprintf("%s_%s%s", row.ImageID, row.Type, GuessExtension(row.FileName, row.Type))
		path := filepath.Join(d.outputDir, name)
		if err := os.WriteFile(path, row.Data, 0o644); err != nil {
			d.log.Error().Err(err).Str("path", path).Msg("failed to write image")
			continue
		}
		saved++

		if highWater == nil || row.CreatedAt.After(*highWater) {
			t := row.CreatedAt
			highWater = &t
		}
	}

	if highWater != nil {
		if err := d.writeLastTimestamp(*highWater); err != nil {
			return err
		}
	}

	d.log.Info().Int("fetched", len(rows)).Int("saved", saved).Msg("download pass complete")
	return nil
}

// RunLoop repeats Run until the context is canceled.
func (d *Downloader) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := d.Run(ctx); err != nil {
			d.log.Error().Err(err).Msg("download pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Downloader) readLastTimestamp() (*time.Time, error) {
	raw, err := os.ReadFile(d.stateFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("parsing state file timestamp %q: %w", s, err)
	}
	return &t, nil
}

func (d *Downloader) writeLastTimestamp(t time.Time) error {
	if err := os.WriteFile(d.stateFile, []byte(t.Format(time.RFC3339Nano)), 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

var knownExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
}

// GuessExtension picks a file extension from the original file name when it
// carries a recognized one, then from the type tag, defaulting to .bin.
func GuessExtension(fileName *string, imageType detection.ImageType) string {
	if fileName != nil && strings.Contains(*fileName, ".") {
		ext := strings.ToLower(filepath.Ext(*fileName))
		if _, ok := knownExtensions[ext]; ok {
			return ext
		}
	}
	lower := strings.ToLower(string(imageType))
	switch {
	case strings.Contains(lower, "jpeg"):
		return ".jpeg"
	case strings.Contains(lower, "png"):
		return ".png"
	}
	return ".bin"
}
