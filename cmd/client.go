// Package cmd holds the lightnode subcommands that run next to the daemon:
// API clients, the interactive console and self-update.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/lightnode/internal/client"
	"github.com/smazurov/lightnode/internal/discovery"
)

// ServerEnv overrides the default --server value.
const ServerEnv = "LIGHTNODE_SERVER"

const defaultServer = "localhost:8090"

// addServerFlags registers the flags every API client command shares.
func addServerFlags(cmd *cobra.Command) {
	server := os.Getenv(ServerEnv)
	if server == "" {
		server = defaultServer
	}
	cmd.PersistentFlags().StringP("server", "s", server, "Controller address (host:port or URL), or $"+ServerEnv)
	cmd.PersistentFlags().Bool("discover", false, "Find the controller over mDNS instead of using --server")
	cmd.PersistentFlags().Duration("timeout", client.DefaultTimeout, "Request timeout")
}

// newClient builds a client from the shared flags.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	discover, _ := cmd.Flags().GetBool("discover")

	if discover {
		found, err := discovery.Find(cmd.Context(), discovery.BrowseTimeout)
		if err != nil {
			return nil, err
		}
		if len(found) > 1 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Found %d controllers, using %s\n", len(found), found[0].Instance)
		}
		server = found[0].URL()
	}
	return client.New(server)
}

// requestContext bounds a single command by --timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = client.DefaultTimeout
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}

// CreateDiscoverCmd creates the discover command.
func CreateDiscoverCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List controllers advertised on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := discovery.Find(cmd.Context(), wait)
			if err != nil {
				return err
			}
			renderControllers(cmd.OutOrStdout(), found)
			return nil
		},
	}
	cmd.Flags().DurationVarP(&wait, "wait", "w", discovery.BrowseTimeout, "How long to listen for answers")
	return cmd
}
