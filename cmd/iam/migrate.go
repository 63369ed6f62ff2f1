package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migraciones del esquema (goose)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := waitCtx(cmd.Context())
			defer stop()

			st, err := openStore(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Migrate(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Lista las migraciones y si están aplicadas",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := waitCtx(cmd.Context())
			defer stop()

			st, err := openStore(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rows, err := st.MigrationsStatus(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tAPPLIED\tAT\tFILE")
			for _, r := range rows {
				at := "-"
				if r.Applied {
					at = r.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%d\t%t\t%s\t%s\n", r.Version, r.Applied, at, r.Path)
			}
			return tw.Flush()
		},
	})
	return cmd
}
