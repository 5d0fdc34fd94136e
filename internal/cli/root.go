package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"llm-engine-service/pkg/llmengine"
)

const envPrefix = "llm_engine"

// NewRootCmd builds the llmctl command tree. Flags fall back to
// LLM_ENGINE_BASE_URL, LLM_ENGINE_API_KEY and LLM_ENGINE_TIMEOUT.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("base-url", llmengine.DefaultBaseURL)
	v.SetDefault("timeout", 60*time.Second)

	root := &cobra.Command{
		Use:           "llmctl",
		Short:         "Fine-tune and query open-source LLMs on LLM Engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("base-url", "", "LLM Engine server URL")
	root.PersistentFlags().String("api-key", "", "API key, sent as the basic auth username")
	root.PersistentFlags().Duration("timeout", time.Minute, "request timeout; streams fail after this long without data")
	_ = v.BindPFlag("base-url", root.PersistentFlags().Lookup("base-url"))
	_ = v.BindPFlag("api-key", root.PersistentFlags().Lookup("api-key"))
	_ = v.BindPFlag("timeout", root.PersistentFlags().Lookup("timeout"))

	newClient := func() (*llmengine.Client, error) {
		apiKey := v.GetString("api-key")
		if apiKey == "" {
			return nil, fmt.Errorf("an API key is required, set --api-key or LLM_ENGINE_API_KEY")
		}
		timeout := v.GetDuration("timeout")
		return llmengine.NewClient(v.GetString("base-url"), apiKey,
			llmengine.WithTimeout(timeout),
			llmengine.WithStreamIdleTimeout(timeout),
		), nil
	}

	root.AddCommand(
		newFineTunesCmd(newClient),
		newModelsCmd(newClient),
		newCompletionsCmd(newClient),
	)
	return root
}

// Execute runs llmctl and exits non-zero on failure
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type clientFactory func() (*llmengine.Client, error)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetRowLine(false)
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetColumnSeparator("")
	table.AppendBulk(rows)
	table.Render()
}
