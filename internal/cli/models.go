package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"llm-engine-service/pkg/llmengine"
)

func newModelsCmd(newClient clientFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Manage deployed models",
		Example: `
llmctl models list
llmctl models get llama-2-7b.demo.231018-101500
`,
	}

	var req llmengine.CreateModelRequest
	var minWorkers, maxWorkers int
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Deploy a base model or checkpoint under NAME",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			req.Name = args[0]
			if cmd.Flags().Changed("min-workers") {
				req.MinWorkers = &minWorkers
			}
			if cmd.Flags().Changed("max-workers") {
				req.MaxWorkers = &maxWorkers
			}
			resp, err := client.CreateModel(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	create.Flags().StringVar(&req.ModelName, "model", "", "base model from the catalog")
	create.Flags().StringVar(&req.CheckpointPath, "checkpoint-path", "", "location of fine-tuned weights")
	create.Flags().IntVar(&req.GPUs, "gpus", 0, "GPUs per worker, defaults to the catalog value")
	create.Flags().StringVar(&req.GPUType, "gpu-type", "", "GPU type, defaults to the catalog value")
	create.Flags().IntVar(&minWorkers, "min-workers", 1, "minimum replicas")
	create.Flags().IntVar(&maxWorkers, "max-workers", 1, "maximum replicas")
	create.Flags().BoolVar(&req.PublicInference, "public", false, "allow every API key to run completions")
	_ = create.MarkFlagRequired("model")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the models you can query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.ModelEndpoints))
			for _, m := range resp.ModelEndpoints {
				rows = append(rows, []string{m.Name, m.ModelName, m.Status, m.Owner})
			}
			writeTable(cmd.OutOrStdout(), []string{"Name", "Base Model", "Status", "Owner"}, rows)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Show a model and its serving status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			m, err := client.GetModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}

	del := &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Delete a model you own",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.DeleteModel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	catalog := &cobra.Command{
		Use:   "catalog",
		Short: "List the base models that can be deployed or fine-tuned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			resp, err := client.ListBaseModels(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.Models))
			for _, m := range resp.Models {
				rows = append(rows, []string{m.Name, strconv.FormatBool(m.FineTunable), strconv.Itoa(m.GPUs), m.GPUType})
			}
			writeTable(cmd.OutOrStdout(), []string{"Name", "Fine Tunable", "GPUs", "GPU Type"}, rows)
			return nil
		},
	}

	cmd.AddCommand(create, list, get, del, catalog)
	return cmd
}
