package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"llm-engine-service/pkg/llmengine"
)

func newFineTunesCmd(newClient clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fine-tunes",
		Aliases: []string{"fine-tune", "ft"},
		Short:   "Create and track fine-tunes",
		Example: `
llmctl fine-tunes create --model llama-2-7b --training-file https://example.com/train.csv --suffix demo
llmctl fine-tunes get ft-0d9c1a3e-...
`,
	}

	var req llmengine.CreateFineTuneRequest
	var hyperparameters map[string]string
	create := &cobra.Command{
		Use:   "create",
		Short: "Launch a fine-tune of a base model on a prompt/response CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			req.Hyperparameters = parseHyperparameters(hyperparameters)
			resp, err := client.CreateFineTune(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	create.Flags().StringVar(&req.Model, "model", "", "base model to fine-tune")
	create.Flags().StringVar(&req.TrainingFile, "training-file", "", "URL of the training CSV")
	create.Flags().StringVar(&req.ValidationFile, "validation-file", "", "URL of the validation CSV")
	create.Flags().StringVar(&req.Suffix, "suffix", "", "suffix added to the fine-tuned model name")
	create.Flags().StringToStringVar(&hyperparameters, "hyperparameters", nil, "hyperparameter overrides, e.g. epochs=2,lr=0.0001")
	_ = create.MarkFlagRequired("model")
	_ = create.MarkFlagRequired("training-file")

	get := &cobra.Command{
		Use:   "get FINE_TUNE_ID",
		Short: "Show the status of a fine-tune",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ft, err := client.GetFineTune(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ft)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your fine-tunes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.ListFineTunes(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cancel := &cobra.Command{
		Use:   "cancel FINE_TUNE_ID",
		Short: "Cancel a fine-tune that has not finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.CancelFineTune(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(create, get, list, cancel)
	return cmd
}

// parseHyperparameters keeps numbers and booleans typed so the server sees
// epochs=2 as 2 rather than "2"
func parseHyperparameters(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, raw := range in {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out[k] = i
		} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
			out[k] = f
		} else if b, err := strconv.ParseBool(raw); err == nil {
			out[k] = b
		} else {
			out[k] = raw
		}
	}
	return out
}
