package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set during build via -ldflags.
	Version = "0.1.0-dev"
	Commit  = "unknown"
	Date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "jacin",
		Short: "A Wayland input-method coordination layer",
		Long: `jacin binds a headless modal text editor's command language to
text input fields over wlroots' input-method and virtual-keyboard
protocols, giving any Wayland application modal editing without
knowing it's there.

Run with no subcommand to start the coordination daemon.`,
		SilenceUsage: true,
		RunE:         runIME,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
}
