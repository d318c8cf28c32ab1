package main

import (
	"encoding/json"
	"time"

	"github.com/bikestra/paper-tracker/internal/arxiv"
	"github.com/bikestra/paper-tracker/internal/config"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch <id-or-url>",
		Short: "Fetch arXiv metadata and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := arxiv.Normalize(args[0])
			if err != nil {
				return err
			}

			if baseURL == "" {
				baseURL = config.AppConfig.ArxivBaseURL
			}
			if timeout == 0 {
				timeout = config.AppConfig.ArxivTimeout
			}
			client := arxiv.NewClient(arxiv.WithBaseURL(baseURL), arxiv.WithTimeout(timeout))

			meta, err := client.Fetch(cmd.Context(), id)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "arXiv export API endpoint")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "request timeout")
	return cmd
}
