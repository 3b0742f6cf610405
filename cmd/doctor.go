package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/garypippi/jacin/internal/ipc"
	"github.com/garypippi/jacin/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Inspect a running jacin instance's live state",
	Long: `doctor attaches to the running jacin process's doctor socket and
streams activation lifecycle, mode, and pending-state changes as they
happen, rendered as a full-screen terminal status view.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if !ipc.IsRunning() {
		return fmt.Errorf("jacin is not running (no doctor socket)")
	}

	client, err := ipc.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create doctor client: %w", err)
	}

	runner := ui.NewProgramRunner(ui.DefaultProgramConfig())
	return runner.Run(context.Background(), ui.NewDoctorModel(client))
}
