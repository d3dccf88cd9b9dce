package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/passlink/credmine"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Review the Feedback Queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueDiscardCommand(ctx))
	cmd.AddCommand(newQueueEditCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	return cmd
}

func withQueue(ctx context.Context, cc *commandContext, fn func(credmine.Queue) error) error {
	q, err := cc.openQueue(ctx)
	if err != nil {
		return err
	}
	defer q.Close()
	return fn(q)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var all bool
	var stateFilter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var want credmine.State
			if stateFilter != "" {
				s, err := credmine.ParseState(stateFilter)
				if err != nil {
					return fmt.Errorf("--state %q: %w", stateFilter, err)
				}
				want = s
				all = all || s == credmine.StateCreated || s == credmine.StateDiscarded
			}
			return withQueue(cmd.Context(), ctx, func(q credmine.Queue) error {
				tasks, err := q.List(cmd.Context(), all)
				if err != nil {
					return err
				}
				if want != "" {
					tasks = filterState(tasks, want)
				}
				writeTasks(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include finished tasks")
	cmd.Flags().StringVar(&stateFilter, "state", "", "Only show tasks in this state (pending, failed, created, discarded)")
	return cmd
}

func filterState(tasks []*credmine.Task, want credmine.State) []*credmine.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.State() == want {
			out = append(out, t)
		}
	}
	return out
}

// writeTasks renders a table on a terminal and tab-separated lines otherwise.
// Passwords are never printed.
func writeTasks(w io.Writer, tasks []*credmine.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks")
		return
	}
	headers := []string{"ID", "State", "Label", "Username", "URL", "Attempts", "Feedback", "Created"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		f := t.ResultFields()
		rows = append(rows, []string{
			t.ID,
			t.State().String(),
			truncate(f.Label, 32),
			truncate(f.Username, 32),
			truncate(f.URL, 48),
			strconv.Itoa(t.Attempts),
			truncate(t.Feedback, 48),
			formatMillis(t.CreatedAt),
		})
	}
	if !isTerminal(w) {
		for _, r := range rows {
			for i, col := range r {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				fmt.Fprint(w, col)
			}
			fmt.Fprintln(w)
		}
		return
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
	fmt.Fprintln(w, renderTable(headers, rows, aligns))
}

func newQueueDiscardCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <id>",
		Short: "Discard a pending task; no credential will be created",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), ctx, func(q credmine.Queue) error {
				if err := q.Discard(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueueEditCommand(ctx *commandContext) *cobra.Command {
	var label, user, password, url string
	var hidden bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the fields a pending task will be stored with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return withQueue(cmd.Context(), ctx, func(q credmine.Queue) error {
				t, err := q.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				f := t.ResultFields()
				if flags.Changed("label") {
					f.Label = label
				}
				if flags.Changed("user") {
					f.Username = user
				}
				if flags.Changed("password") {
					f.Password = password
				}
				if flags.Changed("url") {
					f.URL = url
				}
				if flags.Changed("hidden") {
					f.Hidden = hidden
				}
				if err := q.Edit(cmd.Context(), args[0], f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Credential label")
	cmd.Flags().StringVar(&user, "user", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.Flags().StringVar(&url, "url", "", "URL")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Store in the private folder")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a task from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(cmd.Context(), ctx, func(q credmine.Queue) error {
				if err := q.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}
