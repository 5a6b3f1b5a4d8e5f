package job

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/dispatcher"
	"github.com/JakeFAU/review-crawler/internal/extract"
	"github.com/JakeFAU/review-crawler/internal/record"
	"github.com/JakeFAU/review-crawler/internal/storage/csvfile"
)

// Reviews reads businesses from search files and crawls one review page per
// business into its own output. A file that cannot be read is reported and
// skipped; the remaining files still run.
func (r *Runner) Reviews(ctx context.Context, files []string) (Summary, error) {
	if len(files) == 0 {
		return Summary{}, errors.New("at least one search file is required")
	}

	var readErrs []error
	var businesses []crawler.Business
	for _, f := range files {
		bs, err := csvfile.ReadBusinesses(f)
		if err != nil {
			r.logger.Error("reading search file failed", zap.String("file", f), zap.Error(err))
			readErrs = append(readErrs, err)
			continue
		}
		businesses = append(businesses, bs...)
	}
	businesses = r.reviewTargets(businesses, files)

	extractor := extract.NewReviews()
	var (
		mu      sync.Mutex
		outputs []crawler.Output
		errs    []error
	)
	collect := func(out crawler.Output, err error) {
		mu.Lock()
		defer mu.Unlock()
		outputs = append(outputs, out)
		if err != nil {
			errs = append(errs, err)
		}
	}

	tasks := make([]dispatcher.Task, 0, len(businesses))
	for _, b := range businesses {
		unit := crawler.Unit{
			Kind:     record.KindReview,
			Label:    b.Name,
			URL:      b.ReviewURL,
			Location: r.cfg.Location,
		}
		tasks = append(tasks, dispatcher.Task{
			Label: unit.Label,
			Run: func(ctx context.Context) error {
				out, err := r.openOutput(ctx, b.Name, record.KindReview)
				if err != nil {
					r.progress.unitDone(0, err)
					return err
				}
				res, runErr := r.worker.Run(ctx, unit, extractor, out.sink)
				r.progress.unitDone(res.Records, runErr)
				// This unit is the only writer, so its sink closes here.
				result, closeErr := r.closeOutput(ctx, out)
				collect(result, closeErr)
				return runErr
			},
		})
	}
	r.progress.addUnits(len(tasks))
	r.logger.Info("reviews phase starting", zap.Int("files", len(files)), zap.Int("units", len(tasks)))

	report := r.dispatcher.Run(ctx, tasks)
	summary := Summary{Outputs: outputs, Report: report}
	return summary, errors.Join(append(readErrs, errs...)...)
}

// reviewTargets drops businesses without a usable review URL, businesses whose
// output would land on one of the input search files, and later rows that
// would write to an output already claimed.
func (r *Runner) reviewTargets(in []crawler.Business, inputs []string) []crawler.Business {
	reserved := make(map[string]struct{}, len(inputs))
	for _, f := range inputs {
		reserved[pathKey(f)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]crawler.Business, 0, len(in))
	for _, b := range in {
		if !validReviewURL(b.ReviewURL) {
			r.logger.Warn("skipping business without review url",
				zap.String("name", b.Name),
				zap.String("trustpilot_url", b.ReviewURL),
			)
			continue
		}
		path := crawler.OutputPath(r.cfg.OutputDir, b.Name)
		if _, ok := reserved[pathKey(path)]; ok {
			r.logger.Warn("skipping business whose output is an input search file",
				zap.String("name", b.Name),
				zap.String("path", path),
			)
			continue
		}
		name := crawler.OutputName(b.Name)
		if _, ok := seen[name]; ok {
			r.logger.Warn("skipping business with duplicate output name", zap.String("name", b.Name))
			continue
		}
		seen[name] = struct{}{}
		out = append(out, b)
	}
	return out
}

func validReviewURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// pathKey normalizes a file path for comparison.
func pathKey(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
