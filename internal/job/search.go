package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/dispatcher"
	"github.com/JakeFAU/review-crawler/internal/extract"
	"github.com/JakeFAU/review-crawler/internal/record"
)

// Search crawls cfg.Pages result pages for every keyword. Each keyword gets
// one sink; sinks are closed only after the pool has joined every unit.
func (r *Runner) Search(ctx context.Context) (Summary, error) {
	keywords := uniqueKeywords(r.cfg.Keywords)
	if len(keywords) == 0 {
		return Summary{}, errors.New("at least one keyword is required")
	}
	extractor := extract.NewSearch()

	outputs := make([]*output, 0, len(keywords))
	var tasks []dispatcher.Task
	for _, keyword := range keywords {
		out, err := r.openOutput(ctx, keyword, record.KindSearch)
		if err != nil {
			return Summary{}, r.abort(ctx, outputs, err)
		}
		outputs = append(outputs, out)
		for page := range r.cfg.Pages {
			unit := crawler.Unit{
				Kind:     record.KindSearch,
				Label:    fmt.Sprintf("%s page %d", keyword, page),
				URL:      crawler.SearchURL(keyword, page),
				Location: r.cfg.Location,
			}
			tasks = append(tasks, r.task(unit, extractor, out.sink))
		}
	}
	r.progress.addUnits(len(tasks))
	r.logger.Info("search phase starting",
		zap.Strings("keywords", keywords),
		zap.Int("pages", r.cfg.Pages),
		zap.Int("units", len(tasks)),
	)

	report := r.dispatcher.Run(ctx, tasks)

	summary := Summary{Report: report}
	var errs []error
	for _, out := range outputs {
		result, err := r.closeOutput(ctx, out)
		if err != nil {
			errs = append(errs, err)
		}
		summary.Outputs = append(summary.Outputs, result)
	}
	return summary, errors.Join(errs...)
}

// abort closes outputs opened before a setup failure.
func (r *Runner) abort(ctx context.Context, outputs []*output, cause error) error {
	ctx, cancel := finalizeContext(ctx)
	defer cancel()
	errs := []error{cause}
	for _, out := range outputs {
		if err := out.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// uniqueKeywords drops blanks and keywords that would share an output file.
func uniqueKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		name := crawler.OutputName(k)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, k)
	}
	return out
}
