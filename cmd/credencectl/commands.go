package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/processor"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show score, tier and conversion rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				status, err := p.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, status)
			})
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "List history events, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				events, err := p.History(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if events == nil {
					events = []credibility.Event{}
				}
				return printJSON(cmd, events)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of events (0 for all)")
	return cmd
}

// reviewFlags are shared by approve, reject and undo.
type reviewFlags struct {
	reviewer string
	notes    string
}

func (f *reviewFlags) register(cmd *cobra.Command, withNotes bool) {
	cmd.Flags().StringVarP(&f.reviewer, "reviewer", "r", "", "Reviewer id")
	_ = cmd.MarkFlagRequired("reviewer")
	if withNotes {
		cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form note stored with the event")
	}
}

func newApproveCmd(opts *rootOptions) *cobra.Command {
	var f reviewFlags
	cmd := &cobra.Command{
		Use:   "approve <user-id> <task-id>",
		Short: "Record an approved task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				res, err := p.Approve(cmd.Context(), args[0], args[1], f.reviewer, f.notes)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newRejectCmd(opts *rootOptions) *cobra.Command {
	var f reviewFlags
	cmd := &cobra.Command{
		Use:   "reject <user-id> <task-id>",
		Short: "Record a rejected task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				res, err := p.Reject(cmd.Context(), args[0], args[1], f.reviewer, f.notes)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newUndoCmd(opts *rootOptions) *cobra.Command {
	var f reviewFlags
	cmd := &cobra.Command{
		Use:   "undo <user-id> <task-id>",
		Short: "Reverse the most recent rejection of a task by a reviewer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				res, err := p.Undo(cmd.Context(), args[0], args[1], f.reviewer)
				if errors.Is(err, credibility.ErrRejectionNotFound) {
					return fmt.Errorf("nothing to undo for task %s by %s", args[1], f.reviewer)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func newDecayCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decay <user-id>",
		Short: "Apply time-based penalty recovery now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				res, err := p.Decay(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func newConvertCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <user-id> <xp>",
		Short: "Convert XP to screen-time minutes at the current rate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			xp, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("xp must be an integer: %w", err)
			}
			return withProcessor(cmd, opts, func(p *processor.Processor) error {
				conv, err := p.Convert(cmd.Context(), args[0], xp)
				if err != nil {
					return err
				}
				return printJSON(cmd, conv)
			})
		},
	}
}
