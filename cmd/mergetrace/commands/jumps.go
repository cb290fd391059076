package commands

import (
	"github.com/spf13/cobra"

	"github.com/moolen/mergetrace/internal/report"
)

func newJumpsCmd(root *rootOptions) *cobra.Command {
	af := &analysisFlags{}

	cmd := &cobra.Command{
		Use:   "jumps PATH...",
		Short: "Count trajectory jumps per log",
		Long: `Print "<file> <jumps>" for every log. A jump is a merge decision of more
than two variables sharing fewer than two of them with the previous one.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root, af)
			if err != nil {
				return err
			}
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer s.close()

			inputs, err := discover(args, cfg.Discovery.Extension)
			if err != nil {
				return err
			}
			outcomes, err := s.analyzer.AnalyzeAll(cmd.Context(), paths(inputs))
			if err != nil {
				return err
			}

			report.WriteJumps(cmd.OutOrStdout(), outcomes)
			if err := s.flushMetrics(); err != nil {
				return err
			}
			return failures(outcomes)
		},
	}

	af.register(cmd)
	return cmd
}
