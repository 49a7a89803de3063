package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kidandcat/sprintboard/internal/board"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/optimistic"
)

func newTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Work with a project's Kanban board on a running server",
	}
	cmd.AddCommand(newTaskBoardCommand(), newTaskMoveCommand())
	return cmd
}

func newTaskBoardCommand() *cobra.Command {
	var conn serverConnection
	cmd := &cobra.Command{
		Use:   "board <project-id>",
		Short: "Print the project's tasks by column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := cl.ListTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			b := board.New(cl, clock.Real())
			defer b.Close()
			b.Load(tasks)
			printBoard(cmd.OutOrStdout(), b)
			return nil
		},
	}
	conn.AddFlags(cmd.Flags())
	return cmd
}

func newTaskMoveCommand() *cobra.Command {
	var conn serverConnection
	cmd := &cobra.Command{
		Use:   "move <project-id> <task-id> <status>",
		Short: "Move a task to another column",
		Long: "Move a task to another column. The move shows immediately and is\n" +
			"undone if the server rejects it.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.TaskStatus(args[2])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[2])
			}
			cl, err := conn.Connect(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := cl.ListTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			b := board.New(cl, clock.Real())
			defer b.Close()
			b.Load(tasks)
			b.OnNotice(func(n optimistic.Notice) {
				fmt.Fprintf(out, "%s: %s: %s\n", n.Level, n.Title, n.Description)
			})

			pending, err := b.MoveTask(cmd.Context(), args[1], status)
			if err != nil {
				return err
			}
			err = pending.WaitContext(cmd.Context())
			printBoard(out, b)
			return err
		},
	}
	conn.AddFlags(cmd.Flags())
	return cmd
}

func printBoard(out io.Writer, b *board.Board) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, col := range b.Columns() {
		fmt.Fprintf(tw, "%s (%d)\n", col.Label, len(col.Tasks))
		for _, t := range col.Tasks {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.ID, t.Priority, t.Title)
		}
	}
	tw.Flush()
}
