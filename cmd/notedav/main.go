package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/service"
	"github.com/torfstack/notedav/internal/sync"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:           "notedav",
		Short:         "Two-way sync between a local note vault and a WebDAV server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var debug bool
	rootCmd.PersistentFlags().
		BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	var verbose bool
	rootCmd.PersistentFlags().
		BoolVarP(&verbose, "verbose", "v", false, "List every step of a sync pass")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logging.SetDebug(debug)
	}

	var setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Configure the server and vault, then perform an initial sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Get()
			if err != nil {
				return err
			}
			cfg, err = config.Reconfigure(cfg)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), cfg, func(ctx context.Context, srv *service.Service) error {
				report, err := srv.SetupAndInitialSync(ctx)
				if err != nil {
					return err
				}
				printReport(report, verbose)
				return nil
			})
		},
	}

	var syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				report, err := srv.RunPass(ctx, service.SourceManual)
				if err != nil {
					return err
				}
				printReport(report, verbose)
				return nil
			})
		},
	}

	var pushCmd = &cobra.Command{
		Use:   "push <path>",
		Short: "Upload a file, replacing the server copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				return srv.Push(ctx, args[0])
			})
		},
	}

	var saveCmd = &cobra.Command{
		Use:   "save <path>",
		Short: "Replace a note in the vault with stdin, the next sync uploads it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("could not read stdin: %w", err)
			}
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				return srv.Save(ctx, args[0], content)
			})
		},
	}

	var lsCmd = &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				entries, err := srv.ListFiles(ctx, path)
				if err != nil {
					return err
				}
				for _, e := range entries {
					name := e.Name
					if e.IsCollection {
						name += "/"
					}
					modified := "-"
					if e.ModifiedAt > 0 {
						modified = e.ModTime().Local().Format(time.DateTime)
					}
					fmt.Printf("%-19s  %s\n", modified, name)
				}
				return nil
			})
		},
	}

	var touchCmd = &cobra.Command{
		Use:   "touch <path>",
		Short: "Create an empty note locally and on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				return srv.CreateFile(ctx, args[0], nil)
			})
		},
	}

	var mkdirCmd = &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder locally and on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				return srv.CreateFolder(ctx, args[0])
			})
		},
	}

	var rmCmd = &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a note or folder locally and on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				return srv.Delete(ctx, args[0])
			})
		},
	}

	var mvCmd = &cobra.Command{
		Use:   "mv <path> <new-name>",
		Short: "Rename a note or folder within its folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				return srv.Rename(ctx, args[0], args[1])
			})
		},
	}

	var daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Keep the vault in sync until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				logging.Infof("Watching '%s', syncing every %s", srv.Config().LocalDir, srv.Config().SyncInterval)
				return srv.RunDaemon(ctx)
			})
		},
	}

	var limit int
	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent sync passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, srv *service.Service) error {
				passes, err := srv.History(ctx, limit)
				if err != nil {
					return err
				}
				for _, p := range passes {
					status := "ok"
					if !p.OK {
						status = "FAILED"
					}
					fmt.Printf(
						"%s  %-8s %-6s pulled=%d pushed=%d created=%d failed=%d took=%s %s\n",
						p.StartedAt.Local().Format(time.DateTime), p.Source, status,
						p.Pulled, p.Pushed, p.Created, p.Failed, p.Duration().Round(time.Millisecond), p.Error,
					)
				}
				return nil
			})
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of passes to show")

	rootCmd.AddCommand(setupCmd, syncCmd, pushCmd, saveCmd, lsCmd, touchCmd, mkdirCmd, rmCmd, mvCmd, daemonCmd, historyCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.Error("notedav failed", err)
		os.Exit(1)
	}
}

// run loads the config and hands a service to fn.
func run(cmd *cobra.Command, fn func(context.Context, *service.Service) error) error {
	cfg, err := config.GetInteractive()
	if err != nil {
		return err
	}
	if !cfg.IsConfigured() {
		return fmt.Errorf("%w, run 'notedav setup' or edit '%s'", sync.ErrNotConfigured, config.Path())
	}
	return withService(cmd.Context(), cfg, fn)
}

func withService(ctx context.Context, cfg config.Config, fn func(context.Context, *service.Service) error) error {
	logging.LogToFile(cfg.LogFile)

	srv, err := service.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := srv.Close(); errClose != nil {
			logging.Error("Could not close history database", errClose)
		}
	}()
	return fn(ctx, srv)
}

func printReport(report *sync.Report, verbose bool) {
	if verbose {
		for _, res := range report.Results() {
			fmt.Println(res)
		}
	}
	for _, res := range report.Failed() {
		logging.Warnf("Skipped %s", res)
	}
	fmt.Printf(
		"pulled %d, pushed %d, created %d folders, %d skipped in %s\n",
		report.Count(sync.OpDownload)+report.Count(sync.OpPull),
		report.Count(sync.OpPush)+report.Count(sync.OpUpload),
		report.Count(sync.OpCreateCollection),
		len(report.Failed()),
		report.Duration().Round(time.Millisecond),
	)
}
