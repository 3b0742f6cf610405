package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/garypippi/jacin/internal/config"
	"github.com/garypippi/jacin/internal/logger"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively write jacin.toml",
	Long: `Setup walks through jacin's configuration options and writes the
result to jacin.toml, following the same form-driven wizard the
teacher's own CLI used for its permission setup.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	log := logger.For("setup")

	cfg := config.DefaultConfig
	sizeStr := strconv.Itoa(cfg.Font.Size)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Commit keybind").
				Description("Notation for the key that finalizes preedit text").
				Value(&cfg.Keybinds.Commit),

			huh.NewSelect[string]().
				Title("Completion adapter").
				Description("Which engine-side autocommands install the candidate path").
				Options(
					huh.NewOption("native", "native"),
					huh.NewOption("external", "external"),
				).
				Value(&cfg.Completion.Adapter),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Start in insert mode?").
				Value(&cfg.Behavior.StartInsert),

			huh.NewConfirm().
				Title("Map the engine's write command to commit?").
				Value(&cfg.Behavior.WriteToCommit),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Proportional font family").
				Value(&cfg.Font.Family),

			huh.NewInput().
				Title("Monospace font family").
				Value(&cfg.Font.MonoFamily),

			huh.NewInput().
				Title("Popup font size").
				Value(&sizeStr).
				Validate(func(s string) error {
					_, err := strconv.Atoi(s)
					return err
				}),

			huh.NewInput().
				Title("Engine binary").
				Description("The headless editor executable jacin spawns").
				Value(&cfg.Engine.Binary),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return fmt.Errorf("invalid font size: %w", err)
	}
	cfg.Font.Size = size

	if err := config.Save(&cfg); err != nil {
		return fmt.Errorf("failed to write jacin.toml: %w", err)
	}

	log.Info("config written", "path", config.GetConfigPath())
	return nil
}
