package main

import (
	"encoding/json"
	"fmt"

	"github.com/nvandessel/polaris/internal/config"
	"github.com/nvandessel/polaris/internal/setup"
	"github.com/spf13/cobra"
)

func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Install the local embedding provider",
		Long: `Download the llama.cpp shared libraries and a GGUF embedding model into
~/.polaris so the "local" embedding provider works without an API key.

Parts already present are not downloaded again. Use --check to only report
what is installed. The local provider needs a binary built with -tags llamacpp.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			check, _ := cmd.Flags().GetBool("check")
			processor, _ := cmd.Flags().GetString("processor")
			modelURL, _ := cmd.Flags().GetString("model-url")

			baseDir := config.Dir()
			inst := setup.Detect(baseDir)
			if !check {
				var err error
				inst, err = setup.Install(cmd.Context(), baseDir, setup.InstallOptions{
					Processor: processor,
					ModelURL:  modelURL,
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(inst)
			}

			fmt.Fprintf(out, "llama.cpp libraries: %s\n", valueOrDefault(inst.LibDir, "(not installed)"))
			fmt.Fprintf(out, "embedding model:     %s\n", valueOrDefault(inst.ModelPath, "(not installed)"))
			if !inst.Available {
				fmt.Fprintln(out, "\nRun 'polaris setup' to install the missing parts.")
				return nil
			}
			fmt.Fprintln(out, "\nEnable the local provider with:")
			fmt.Fprintln(out, "  polaris config set embedding.provider local")
			fmt.Fprintf(out, "  polaris config set embedding.dimensions %d\n", setup.DefaultModelDimensions)
			fmt.Fprintln(out, "Events embedded by another provider must be re-seeded into a fresh database.")
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "Only report what is installed")
	cmd.Flags().String("processor", "cpu", "llama.cpp build: cpu, cuda, metal or vulkan")
	cmd.Flags().String("model-url", "", "GGUF model URL (default nomic-embed-text-v1.5)")
	return cmd
}
