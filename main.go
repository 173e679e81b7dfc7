package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/llmchat-dev/llmchat/internal/config"
	"github.com/llmchat-dev/llmchat/internal/llm"
	"github.com/llmchat-dev/llmchat/internal/llm/providers"
	"github.com/llmchat-dev/llmchat/internal/logging"
	"github.com/llmchat-dev/llmchat/internal/session"
	"github.com/llmchat-dev/llmchat/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:     "llmchat",
	Version: strings.TrimPrefix(config.Version, "v"),
	Short:   "Chat with hosted and local LLM backends from the terminal",
	Long: `llmchat is a terminal chat client that routes your messages to one of
several LLM backends: the hosted Mistral and Google Gemini APIs, or a
local LM Studio / Ollama server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()
		tui.Run(controller, cfg)
		return nil
	},
}

// setup loads the config, installs the file logger, and builds the session
// controller.
func setup() (*config.Manager, *session.Controller, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if _, err := logging.Init(cfg.Dir(), logging.ParseLevel(cfg.App().LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, session.New(cfg), nil
}

func resolveProvider(cfg *config.Manager, flag string) (llm.ProviderID, error) {
	id := llm.ProviderID(strings.TrimSpace(strings.ToLower(flag)))
	if flag == "" {
		id = llm.ProviderID(cfg.App().Provider)
	}
	if !id.Valid() {
		return "", fmt.Errorf("unknown provider %q (expected one of: mistral, gemini, lmstudio, ollama)", id)
	}
	return id, nil
}

func newAskCmd() *cobra.Command {
	var providerFlag string
	var stream bool

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, controller, err := setup()
			if err != nil {
				return err
			}
			defer controller.Close()

			id, err := resolveProvider(cfg, providerFlag)
			if err != nil {
				return err
			}
			if err := controller.Select(id); err != nil {
				return err
			}

			prompt := strings.Join(args, " ")
			ctx := context.Background()

			if !stream {
				reply, err := controller.Send(ctx, prompt, nil)
				if err != nil {
					return err
				}
				fmt.Println(reply)
				return nil
			}

			st, err := controller.Stream(ctx, prompt, nil)
			if err != nil {
				return err
			}
			defer st.Close()
			for {
				frag, err := st.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				fmt.Print(frag)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "backend to use (mistral, gemini, lmstudio, ollama)")
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "print the reply as it is generated")
	return cmd
}

func newModelsCmd() *cobra.Command {
	var providerFlag string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models a local backend has available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			id, err := resolveProvider(cfg, providerFlag)
			if err != nil {
				return err
			}
			mc, err := cfg.ModelConfig(id)
			if err != nil {
				return err
			}
			p, err := providers.New(mc)
			if err != nil {
				return err
			}
			defer p.Close()

			lister, ok := p.(providers.ModelLister)
			if !ok {
				return fmt.Errorf("%s does not expose a model listing", p.Name())
			}
			names, err := lister.ListModels(context.Background())
			if err != nil {
				return err
			}

			color.New(color.FgCyan, color.Bold).Printf("%s models:\n", p.Name())
			for _, name := range names {
				if name == mc.Model {
					color.Green("  * %s (selected)", name)
				} else {
					fmt.Printf("    %s\n", name)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "backend to query (lmstudio, ollama)")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the saved configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set-key [provider] [key]",
		Short: "Store an API key in the secret store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			id := llm.ProviderID(strings.ToLower(args[0]))
			if !id.Valid() {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			if err := cfg.Secrets().Set(string(id), args[1]); err != nil {
				return err
			}
			color.Green("API key for %s saved.", id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the non-secret configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app := cfg.App()
			fmt.Printf("provider:     %s\n", app.Provider)
			fmt.Printf("temperature:  %.1f\n", app.Temperature)
			fmt.Printf("save_history: %t\n", app.SaveHistory)
			fmt.Printf("max_history:  %d\n", app.MaxHistory)
			for _, id := range llm.ProviderIDs() {
				mc, err := cfg.ModelConfig(id)
				if err != nil {
					continue
				}
				key, _ := cfg.Secrets().Get(string(id))
				keyState := "not set"
				if key != "" {
					keyState = "set"
				}
				if mc.Kind == llm.KindLocal {
					keyState = "n/a"
				}
				fmt.Printf("%-10s model=%s base_url=%s api_key=%s\n", id, mc.Model, mc.BaseURL, keyState)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [provider]",
		Short: "Reset one backend's config to the built-in defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			id := llm.ProviderID(strings.ToLower(args[0]))
			if !id.Valid() {
				return fmt.Errorf("unknown provider %q", args[0])
			}
			if err := cfg.ResetModelConfig(id); err != nil {
				return err
			}
			color.Green("Configuration for %s reset to defaults.", id)
			return nil
		},
	})

	return cmd
}

func init() {
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
