package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-crawler/internal/job"
)

func newReviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews FILE...",
		Short: "Crawls the reviews of every business listed in search CSV files",
		Long: `Reads CSV files written by the search command and writes one review CSV
per business. Rows without a review URL are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPhase(cmd, job.PhaseReviews, args)
		},
	}
}
