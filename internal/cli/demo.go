package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acme/scatter-gather/internal/domain"
	"github.com/acme/scatter-gather/internal/service/aggregator"
)

func newDemoCmd(opts *options) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run every policy against all configured backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := opts.container.Registry()
			callers, err := registry.Resolve(registry.IDs())
			if err != nil {
				return err
			}
			inputs := make([]string, len(callers))
			for i := range inputs {
				inputs[i] = message
			}

			out := cmd.OutOrStdout()
			for _, policy := range domain.Policies() {
				resp, err := opts.container.Aggregator().Aggregate(cmd.Context(), aggregator.Request{
					Policy:   policy,
					Callers:  callers,
					Inputs:   inputs,
					Input:    message,
					Fallback: "NA",
				})
				if err != nil {
					_, _ = fmt.Fprintf(out, "%-17s error: %v\n", policy+":", err)
					continue
				}
				_, _ = fmt.Fprintf(out, "%-17s %s\n", policy+":", formatResult(resp))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "hello world", "input sent to every backend")
	return cmd
}
