package main

import (
	"context"
	"fmt"

	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <external-user-id>",
	Short: "List a user's roadmaps with progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		return withService(cmd.Context(), false, func(ctx context.Context, svc *roadmap.Service) error {
			items, err := svc.ListRoadmaps(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), renderList(items))
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show <roadmap-id>",
	Short: "Print a roadmap as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "roadmap")
		if err != nil {
			return err
		}
		return withService(cmd.Context(), false, func(ctx context.Context, svc *roadmap.Service) error {
			view, err := svc.GetRoadmap(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), renderRoadmap(view))
			return nil
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create <external-user-id> <goal>",
	Short: "Generate a new roadmap for a goal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), true, func(ctx context.Context, svc *roadmap.Service) error {
			view, err := svc.CreateRoadmap(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), renderRoadmap(view))
			return nil
		})
	},
}

var decomposeCmd = &cobra.Command{
	Use:   "decompose <step-id>",
	Short: "Generate sub-steps for a step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "step")
		if err != nil {
			return err
		}
		return withService(cmd.Context(), true, func(ctx context.Context, svc *roadmap.Service) error {
			nodes, err := svc.DecomposeStep(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprint(out(cmd), renderSteps(nodes))
			return nil
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <step-id>",
	Short: "Flip a step between done and not done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "step")
		if err != nil {
			return err
		}
		return withService(cmd.Context(), false, func(ctx context.Context, svc *roadmap.Service) error {
			res, err := svc.ToggleStep(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "step %d %s\n", res.ID, doneWord(res.IsDone))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <roadmap-id>",
	Short: "Delete a roadmap and all of its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "roadmap")
		if err != nil {
			return err
		}
		return withService(cmd.Context(), false, func(ctx context.Context, svc *roadmap.Service) error {
			if err := svc.DeleteRoadmap(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "roadmap %d deleted\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, createCmd, decomposeCmd, toggleCmd, deleteCmd)
}

func doneWord(done bool) string {
	if done {
		return "done"
	}
	return "not done"
}
