package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-crawler/internal/job"
)

func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs the search phase, then the reviews phase over its outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhase(cmd, job.PhaseCrawl, nil)
		},
	}
	addSearchFlags(cmd)
	return cmd
}
