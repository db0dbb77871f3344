// Package cmd provides the command-line interface commands for rookpkg.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rookpkg/pkg/config"
	"rookpkg/pkg/helper/log"
)

var (
	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "rookpkg",
		Short: "rookpkg is the package manager for a source-based operating system",
		Long:  `Atomic, journaled install/remove/upgrade of source-built packages, with a PubGrub-style dependency resolver and a signed repository sync protocol.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := cfgFile
			if !cmd.Flags().Changed("config") {
				if _, err := os.Stat(path); os.IsNotExist(err) {
					// No rookpkg.conf at the default location and the user
					// didn't ask for one explicitly: fall back to defaults
					// rather than failing commands like "version" that
					// don't need a configured system.
					path = ""
				}
			}
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
)

// Execute runs the root command and terminates the process with the exit
// code assigned to the error it returns.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/etc/rookpkg/rookpkg.conf", "path to rookpkg.conf")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newUpgradeCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRecoverCmd())
}

// setupCommand builds a logger at cfg's configured level and a context that
// cancels on SIGINT/SIGTERM, so a long-running sync or transaction unwinds
// cleanly instead of leaving a stale lock file behind.
func setupCommand(ctx context.Context) (log.Logger, context.Context, context.CancelFunc) {
	logger := log.NewBasicLogger(log.ParseLevel(cfg.LogLevel))
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			logger.Warn("received termination signal, shutting down")
			cancel()
		case <-ctx.Done():
			return
		}
	}()

	return logger, ctx, cancel
}
