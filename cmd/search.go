package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/review-crawler/internal/job"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Crawls search result pages into one CSV per keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPhase(cmd, job.PhaseSearch, nil)
		},
	}
	addSearchFlags(cmd)
	return cmd
}
