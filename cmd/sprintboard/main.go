// Command sprintboard runs the sprintboard server and its admin tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "sprintboard",
		Short:         "Agile project tracker: projects, sprints, tasks, bugs and a wiki",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "sprintboard.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newUserCommand(&configPath),
		newTaskCommand(),
	)
	return root
}
