package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"llm-engine-service/pkg/llmengine"
)

func newCompletionsCmd(newClient clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "completions",
		Aliases: []string{"completion"},
		Short:   "Run prompts against a model",
	}

	var req llmengine.CompletionRequest
	var stream bool
	create := &cobra.Command{
		Use:   "create MODEL",
		Short: "Complete a prompt with MODEL",
		Example: `
llmctl completions create llama-2-7b --prompt "Hello, my name is" --max-new-tokens 10
llmctl completions create my-llama --prompt "Write a haiku" --stream
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !stream {
				resp, err := client.CreateCompletion(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return printJSON(out, resp)
			}

			err = client.CreateCompletionStream(cmd.Context(), args[0], req, func(chunk llmengine.CompletionStreamResponse) error {
				if chunk.Output == nil {
					return nil
				}
				_, err := fmt.Fprint(out, chunk.Output.Text)
				return err
			})
			fmt.Fprintln(out)
			return err
		},
	}
	create.Flags().StringVar(&req.Prompt, "prompt", "", "prompt to complete")
	create.Flags().IntVar(&req.MaxNewTokens, "max-new-tokens", 100, "maximum number of generated tokens")
	create.Flags().Float64Var(&req.Temperature, "temperature", 0.2, "sampling temperature between 0 and 1, 0 is greedy")
	create.Flags().StringSliceVar(&req.StopSequences, "stop", nil, "stop sequences")
	create.Flags().BoolVar(&stream, "stream", false, "print tokens as they are generated")
	_ = create.MarkFlagRequired("prompt")

	cmd.AddCommand(create)
	return cmd
}
