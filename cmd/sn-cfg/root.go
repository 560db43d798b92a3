package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/esnet/esnet-smartnic-fw/internal/api"
	"github.com/esnet/esnet-smartnic-fw/internal/config"
)

// client holds the state shared by every command of one invocation.
type client struct {
	cfg    *config.Config
	logger *slog.Logger
	conn   *grpc.ClientConn
}

// connect dials the agent on first use.
func (c *client) connect() (api.SmartnicConfigClient, error) {
	if c.conn == nil {
		conn, err := grpc.NewClient(c.cfg.Target(), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", c.cfg.Target(), err)
		}
		c.logger.Debug("connecting", "target", c.cfg.Target())
		c.conn = conn
	}
	return api.NewSmartnicConfigClient(c.conn), nil
}

func (c *client) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.cfg.Timeout)
}

func (c *client) close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func newRootCmd() *cobra.Command {
	c := &client{}
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sn-cfg",
		Short: "SmartNIC configuration client",
		Long: `sn-cfg talks to the SmartNIC config agent over gRPC.

The agent address and port can also be set through the SN_CFG_CLI_ADDRESS and
SN_CFG_CLI_PORT environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			level, err := cfg.Level()
			if err != nil {
				return err
			}
			if verbose {
				level = slog.LevelDebug
			}
			c.cfg = cfg
			c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("address", config.DefaultAddress, "address of the server to connect to")
	flags.Int("port", config.DefaultPort, "port the server listens on")
	flags.Duration("timeout", config.DefaultTimeout, "deadline for each remote call")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&verbose, "verbose", false, "log debug detail to stderr")

	cmd.AddCommand(newShowCmd(c), newClearCmd(c))
	return cmd
}

func newShowCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display SmartNIC state",
	}
	cmd.AddCommand(newShowStatsCmd(c))
	return cmd
}

func newClearCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear SmartNIC state",
	}
	cmd.AddCommand(newClearStatsCmd(c))
	return cmd
}
