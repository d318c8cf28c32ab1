package main

import (
	"fmt"

	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <id-or-url>...",
		Short: "Print the canonical arXiv identifier for each input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, arg := range args {
				id, err := arxiv.Normalize(arg)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", arg, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id.String(), id.AbsURL())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d inputs could not be normalized", failed, len(args))
			}
			return nil
		},
	}
}
