package docbase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kart-io/docbase/pkg/errors"
	"github.com/kart-io/docbase/pkg/mongodb/naming"
)

func newClientsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List configured clients with connection strings redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer e.shutdown()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(e.opts.MongoDB)
		},
	}
}

func newResolveCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve KEY [COLLECTION-KEY...]",
		Short: "Show the database and collections a client key resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer e.shutdown()

			cfg, err := e.opts.MongoDB.ResolveClient(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "KEY\tDATABASE\tCOLLECTION-KEY\tCOLLECTION\n")
			keys := args[1:]
			if len(keys) == 0 {
				for _, c := range cfg.Collections {
					keys = append(keys, c.Key)
				}
			}
			if len(keys) == 0 {
				fmt.Fprintf(w, "%s\t%s\t-\t-\n", cfg.Key, cfg.Database)
			}
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cfg.Key, cfg.Database, k, naming.Resolve(cfg, k))
			}
			return w.Flush()
		},
	}
}

func newPingCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [KEY...]",
		Short: "Connect to clients and report their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer e.shutdown()

			repo, err := e.repository()
			if err != nil {
				return err
			}

			keys := args
			if len(keys) == 0 {
				for _, c := range e.opts.MongoDB.Clients {
					keys = append(keys, c.Key)
				}
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			for _, k := range keys {
				if _, err := repo.Database(ctx, k); err != nil {
					return err
				}
			}

			status := e.clients.HealthCheckAll(ctx)
			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)

			var unhealthy []string
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "KEY\tHEALTHY\tLATENCY\tERROR\n")
			for _, name := range names {
				s := status[name]
				msg := "-"
				if s.Error != nil {
					msg = s.Error.Error()
					unhealthy = append(unhealthy, name)
				}
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", name, s.Healthy, s.Latency, msg)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(unhealthy) > 0 {
				return errors.ErrDBConnection.WithMessagef("unhealthy clients: %s", strings.Join(unhealthy, ", "))
			}
			return nil
		},
	}
}

func newDropCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "drop KEY COLLECTION-KEY",
		Short: "Drop the collection a key resolves to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer e.shutdown()

			repo, err := e.repository()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if _, err := repo.DropCollection(ctx, args[0], args[1]); err != nil {
				return err
			}

			cfg, _ := e.opts.MongoDB.ResolveClient(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s.%s\n", cfg.Database, naming.Resolve(cfg, args[1]))
			return nil
		},
	}
}
