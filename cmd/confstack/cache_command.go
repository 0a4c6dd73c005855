package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the configuration cache",
	}

	cacheCmd.AddCommand(newCacheStatusCommand(ctx))

	return cacheCmd
}

func newCacheStatusCommand(ctx *commandContext) *cobra.Command {
	var warm bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache state and snapshot usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			if warm {
				if _, err := eng.Get(cmd.Context(), ""); err != nil {
					return err
				}
			}
			status := eng.Status(cmd.Context())
			if ctx.wantJSON(cmd) {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			backend := status.Backend
			if backend == "" {
				backend = "memory only"
			}
			fmt.Fprintf(out, "Cache dir:    %s\n", status.CacheDir)
			fmt.Fprintf(out, "Backend:      %s\n", backend)
			fmt.Fprintf(out, "Degraded:     %s\n", yesNo(status.Degraded))
			fmt.Fprintf(out, "Entire built: %s\n", yesNo(status.Cache.Built))
			fmt.Fprintf(out, "Loaded paths: %d\n", len(status.Cache.LoadedPaths))

			if len(status.Snapshots) == 0 {
				fmt.Fprintln(out, "Snapshots: none")
				return nil
			}
			rows := make([][]string, 0, len(status.Snapshots))
			for _, snap := range status.Snapshots {
				rows = append(rows, []string{
					snap.Name,
					humanize.Bytes(uint64(max(snap.Size, 0))),
					humanizeTime(snap.UpdatedAt),
				})
			}
			printTable(cmd, []string{"Snapshot", "Size", "Updated"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft})
			return nil
		},
	}

	cmd.Flags().BoolVar(&warm, "warm", false, "Build the entire cache before reporting")
	return cmd
}

func humanizeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", humanize.Time(t), t.Local().Format(time.DateTime))
}
