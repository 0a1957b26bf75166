package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/storage"
	"github.com/spf13/cobra"
)

type opener func(ctx context.Context, cfg *slotsConfig) (storage.Storage, error)

var errInvalidSlots = errors.New("some slots failed validation")

func newRootCmd(cfg *slotsConfig, open opener, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "slots",
		Short:         "Inspect and maintain rule-horror save slots",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: redis or sqlite")
	root.PersistentFlags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis connection URL")
	root.PersistentFlags().StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "sqlite slot database")

	// withStorage opens the backend for one command run.
	withStorage := func(run func(ctx context.Context, cmd *cobra.Command, slots storage.Storage, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			slots, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer slots.Close()
			return run(ctx, cmd, slots, args)
		}
	}

	var slotName string

	root.AddCommand(
		&cobra.Command{
			Use:   "list [session-key]",
			Short: "List session keys, or the slots of one key",
			Args:  cobra.MaximumNArgs(1),
			RunE:  withStorage(runList),
		},
		&cobra.Command{
			Use:   "show <session-key> [slot]",
			Short: "Print a slot as JSON; the autosave when no slot is given",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  withStorage(runShow),
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check that every stored slot decodes",
			Args:  cobra.NoArgs,
			RunE:  withStorage(runValidate),
		},
	)

	purge := &cobra.Command{
		Use:   "purge <session-key>",
		Short: "Delete every slot of a session, or one slot with --slot",
		Args:  cobra.ExactArgs(1),
		RunE: withStorage(func(ctx context.Context, cmd *cobra.Command, slots storage.Storage, args []string) error {
			return runPurge(ctx, cmd, slots, args[0], slotName, cmd.Flags().Changed("slot"))
		}),
	}
	purge.Flags().StringVar(&slotName, "slot", "", "delete only this slot (empty name is the autosave)")
	root.AddCommand(purge)

	return root
}

func slotLabel(name string) string {
	if name == storage.DefaultSlot {
		return "(autosave)"
	}
	return name
}

func runList(ctx context.Context, cmd *cobra.Command, slots storage.Storage, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 1 {
		infos, err := slots.ListSlots(ctx, args[0])
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintf(out, "No slots for %s\n", args[0])
			return nil
		}
		for _, info := range infos {
			switch {
			case info.SavedAt.IsZero():
				fmt.Fprintf(out, "%-16s corrupt\n", slotLabel(info.Name))
			case info.Active:
				fmt.Fprintf(out, "%-16s %s  %s\n", slotLabel(info.Name), info.SavedAt.Format(time.RFC3339), info.Scene)
			default:
				fmt.Fprintf(out, "%-16s %s  %s (finished)\n", slotLabel(info.Name), info.SavedAt.Format(time.RFC3339), info.Scene)
			}
		}
		return nil
	}

	keys, err := slots.ListKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No sessions stored")
		return nil
	}
	for _, key := range keys {
		infos, err := slots.ListSlots(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%d slot(s)\n", key, len(infos))
	}
	return nil
}

func runShow(ctx context.Context, cmd *cobra.Command, slots storage.Storage, args []string) error {
	name := storage.DefaultSlot
	if len(args) == 2 {
		name = args[1]
	}
	slot, err := slots.LoadSlot(ctx, args[0], name)
	if err != nil {
		return err
	}
	if slot == nil {
		return fmt.Errorf("%w: %s %s", storage.ErrSlotNotFound, args[0], slotLabel(name))
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(slot)
}

func runPurge(ctx context.Context, cmd *cobra.Command, slots storage.Storage, key, name string, single bool) error {
	out := cmd.OutOrStdout()
	if single {
		if err := storage.ValidateSlotName(name); err != nil {
			return err
		}
		if err := slots.DeleteSlot(ctx, key, name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %s from %s\n", slotLabel(name), key)
		return nil
	}
	n, err := slots.DeleteAllSlots(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d slot(s) from %s\n", n, key)
	return nil
}

func runValidate(ctx context.Context, cmd *cobra.Command, slots storage.Storage, _ []string) error {
	out := cmd.OutOrStdout()
	keys, err := slots.ListKeys(ctx)
	if err != nil {
		return err
	}

	var checked, bad int
	for _, key := range keys {
		infos, err := slots.ListSlots(ctx, key)
		if err != nil {
			return err
		}
		for _, info := range infos {
			checked++
			slot, err := slots.LoadSlot(ctx, key, info.Name)
			switch {
			case err != nil:
				bad++
				fmt.Fprintf(out, "FAIL %s %s: %v\n", key, slotLabel(info.Name), err)
			case slot == nil:
				// deleted since listing
				checked--
			case slot.Session == nil:
				bad++
				fmt.Fprintf(out, "FAIL %s %s: no session\n", key, slotLabel(info.Name))
			case slot.Session.Key != key:
				bad++
				fmt.Fprintf(out, "FAIL %s %s: holds session for %q\n", key, slotLabel(info.Name), slot.Session.Key)
			}
		}
	}

	fmt.Fprintf(out, "Checked %d slot(s) across %d session(s), %d invalid\n", checked, len(keys), bad)
	if bad > 0 {
		return errInvalidSlots
	}
	return nil
}
