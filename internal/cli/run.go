package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acme/scatter-gather/internal/domain"
	"github.com/acme/scatter-gather/internal/service/aggregator"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		callers  []string
		inputs   []string
		input    string
		fallback string
		details  bool
	)

	cmd := &cobra.Command{
		Use:   "run <policy>",
		Short: "Aggregate one request under a policy",
		Long: "Policies: fail-fast, fail-partial, fail-soft, completion-order.\n" +
			"completion-order sends --input to every caller; the others pair --callers with --inputs by position.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := domain.ParsePolicy(args[0])
			if err != nil {
				return err
			}
			resolved, err := opts.container.Registry().Resolve(callers)
			if err != nil {
				return err
			}

			resp, err := opts.container.Aggregator().Aggregate(cmd.Context(), aggregator.Request{
				Policy:   policy,
				Callers:  resolved,
				Inputs:   inputs,
				Input:    input,
				Fallback: fallback,
			})
			if details {
				printOutcomes(cmd.ErrOrStderr(), resp.Outcomes)
			}
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), formatResult(resp))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&callers, "callers", nil, "backend ids, comma separated")
	cmd.Flags().StringSliceVar(&inputs, "inputs", nil, "one input per caller, comma separated")
	cmd.Flags().StringVar(&input, "input", "", "shared input for completion-order")
	cmd.Flags().StringVar(&fallback, "fallback", "NA", "substitute for failed calls under fail-soft")
	cmd.Flags().BoolVar(&details, "details", false, "print every call outcome to stderr")
	_ = cmd.MarkFlagRequired("callers")

	return cmd
}

func formatResult(resp aggregator.Response) string {
	switch resp.Policy {
	case domain.PolicyFailFast, domain.PolicyFailSoft:
		return resp.Joined
	default:
		return "[" + strings.Join(resp.Values, ", ") + "]"
	}
}

func printOutcomes(w io.Writer, outcomes []domain.Outcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("#%d %-12s %-8s %6dms", o.Index, o.CallerID, o.Kind, o.Duration.Milliseconds())
		if o.Err != nil {
			line += "  " + o.Err.Error()
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
