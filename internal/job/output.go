package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/pipeline"
	"github.com/JakeFAU/review-crawler/internal/record"
	"github.com/JakeFAU/review-crawler/internal/storage/csvfile"
	"github.com/JakeFAU/review-crawler/internal/storage/tee"
)

// Notification is published once per finished output.
type Notification struct {
	RunID string `json:"run_id"`
	crawler.Output
}

// Attributes implements pubsub.Attributer.
func (n Notification) Attributes() map[string]string {
	return map[string]string{
		"run_id": n.RunID,
		"kind":   string(n.Kind),
	}
}

// output is one target file and the sink feeding it.
type output struct {
	name string
	kind record.Kind
	path string
	sink *pipeline.Pipeline
}

func (r *Runner) openOutput(_ context.Context, subject string, kind record.Kind) (*output, error) {
	name := crawler.OutputName(subject)
	path := crawler.OutputPath(r.cfg.OutputDir, subject)
	csvTable, err := csvfile.New(path)
	if err != nil {
		return nil, err
	}
	var table crawler.Table = csvTable
	if r.deps.Mirror != nil {
		if mirror := r.deps.Mirror(name); mirror != nil {
			table = tee.New(csvTable, mirror)
		}
	}
	sink, err := pipeline.New(table, pipeline.Config{Name: name, Capacity: r.cfg.BatchSize}, r.logger.Named("pipeline"))
	if err != nil {
		return nil, err
	}
	return &output{name: name, kind: kind, path: path, sink: sink}, nil
}

// finalizeTimeout bounds the final flush, archive and publish of one output.
const finalizeTimeout = 30 * time.Second

// finalizeContext detaches from run cancellation so a shutdown still flushes
// what the sinks accepted.
func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

// closeOutput closes the sink, then archives and announces the file. Archive
// and publish failures are logged; only a failed final flush is returned.
func (r *Runner) closeOutput(ctx context.Context, out *output) (crawler.Output, error) {
	ctx, cancel := finalizeContext(ctx)
	defer cancel()

	closeErr := out.sink.Close(ctx)
	stats := out.sink.Stats()
	result := crawler.Output{
		Name:       out.name,
		Kind:       out.kind,
		Path:       out.path,
		Records:    stats.Written,
		Duplicates: stats.Duplicates,
		FinishedAt: r.deps.Clock.Now().UTC(),
	}
	if closeErr != nil {
		return result, fmt.Errorf("close output %s: %w", out.name, closeErr)
	}
	logger := r.logger.With(zap.String("output", out.name))
	if result.Records == 0 {
		logger.Warn("output has no records", zap.String("path", out.path))
		return result, nil
	}

	if r.deps.Hasher != nil {
		sum, err := r.deps.Hasher.HashFile(out.path)
		if err != nil {
			logger.Error("checksum failed", zap.Error(err))
		} else {
			result.SHA256 = sum
		}
	}
	if r.deps.Archiver != nil {
		uri, err := r.archive(ctx, out.path)
		if err != nil {
			logger.Error("archive failed", zap.Error(err))
		} else {
			result.ArchiveURI = uri
		}
	}
	if r.deps.Publisher != nil {
		id, err := r.deps.Publisher.Publish(ctx, Notification{RunID: r.runID, Output: result})
		if err != nil {
			logger.Error("publish completion failed", zap.Error(err))
		} else {
			logger.Debug("completion published", zap.String("message_id", id))
		}
	}
	logger.Info("output finished",
		zap.String("path", out.path),
		zap.Int("records", result.Records),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

func (r *Runner) archive(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is built from the configured output dir
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			r.logger.Warn("closing archived file failed", zap.Error(cerr))
		}
	}()
	object := r.runID + "/" + filepath.Base(path)
	uri, err := r.deps.Archiver.PutObject(ctx, object, "text/csv", f)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	return uri, nil
}
