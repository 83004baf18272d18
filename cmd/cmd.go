package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ollama/oneshot/api"
	"github.com/ollama/oneshot/envconfig"
	"github.com/ollama/oneshot/logutil"
	"github.com/ollama/oneshot/progress"
	"github.com/ollama/oneshot/version"
)

// flagEnv maps command line flags onto the environment variables that
// envconfig reads; a flag overrides the variable without touching the
// process environment.
var flagEnv = map[string]string{
	"host":    "OLLAMA_HOST",
	"model":   "OLLAMA_MODEL",
	"timeout": "OLLAMA_TIMEOUT",
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// readStdin reads all of r, giving up once ctx is done or timeout passes.
// A zero timeout waits as long as ctx allows.
func readStdin(ctx context.Context, r io.Reader, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		bts []byte
		err error
	}

	// the read cannot be interrupted; an abandoned one ends with the process
	ch := make(chan result, 1)
	go func() {
		bts, err := io.ReadAll(r)
		ch <- result{bts, err}
	}()

	select {
	case res := <-ch:
		return res.bts, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w waiting for input on stdin: %w", api.ErrTimeout, ctx.Err())
		}
		return nil, ctx.Err()
	}
}

// readPrompt joins the arguments into a prompt, prepending stdin when it is
// piped. An empty result falls back to the configured default prompt.
func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	prompts := args
	if stdin := cmd.InOrStdin(); !isTerminal(stdin) {
		in, err := readStdin(cmd.Context(), stdin, envconfig.Timeout())
		if err != nil {
			return "", err
		}

		if s := strings.TrimSpace(string(in)); s != "" {
			prompts = append([]string{s}, prompts...)
		}
	}

	if prompt := strings.TrimSpace(strings.Join(prompts, " ")); prompt != "" {
		return prompt, nil
	}

	return envconfig.Prompt(), nil
}

func GenerateHandler(cmd *cobra.Command, args []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return err
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	req := api.GenerateRequest{
		Model:  envconfig.Model(),
		Prompt: prompt,
	}

	slog.Debug("generating", "host", client.Host(), "model", req.Model, "prompt_length", len(req.Prompt))

	var p *progress.Progress
	if stderr := cmd.ErrOrStderr(); isTerminal(stderr) {
		p = progress.NewProgress(stderr)
		p.Add(progress.NewSpinner(req.Model))
	}

	resp, err := client.Generate(cmd.Context(), &req)
	if p != nil {
		p.StopAndClear()
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Response)

	if verbose {
		fmt.Fprintln(cmd.ErrOrStderr())
		resp.Summary(cmd.ErrOrStderr())
	}

	return nil
}

func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data [][]string
	for _, k := range keys {
		v := vars[k]
		data = append(data, []string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:   "oneshot [PROMPT...]",
		Short: "Send one prompt to an ollama server and print the response",
		Long: `Send one prompt to an ollama server and print the response.

The prompt is taken from the arguments, from stdin when it is piped, or
from OLLAMA_PROMPT, in that order. Without any of them a built-in prompt
is used.`,
		Args:          cobra.ArbitraryArgs,
		Version:       version.Version,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			// overrides describe this invocation's flags only
			envconfig.ClearOverrides()
			for name, key := range flagEnv {
				if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
					envconfig.Override(key, flag.Value.String())
				}
			}

			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
			if path := envconfig.ConfigPath(); path != "" {
				slog.Debug("using config file", "path", path)
			}
			return nil
		},
		RunE: GenerateHandler,
	}

	rootCmd.SetVersionTemplate("oneshot version {{.Version}}\n")

	rootCmd.PersistentFlags().String("host", "", "Ollama server address (default $OLLAMA_HOST or localhost:11434)")
	rootCmd.PersistentFlags().StringP("model", "m", "", fmt.Sprintf("Model to generate with (default $OLLAMA_MODEL or %s)", envconfig.DefaultModel))
	rootCmd.PersistentFlags().Duration("timeout", 0, fmt.Sprintf("Request timeout, 0 waits forever (default $OLLAMA_TIMEOUT or %s)", envconfig.DefaultTimeout))
	rootCmd.Flags().Bool("verbose", false, "Show timings for the response")

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}

	rootCmd.AddCommand(envCmd)

	return rootCmd
}
