package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/3eLLenKa/review-rotation/internal/app"
	"github.com/3eLLenKa/review-rotation/internal/config"
	"github.com/3eLLenKa/review-rotation/internal/output"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "review-rotation",
		Short:         "Hands code review requests to reviewers in turn",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), sweepCmd(), reviewsCmd())
	root.RunE = serveCmd().RunE
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the http server, the expiration sweeper and the health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoad()

			application, err := app.NewApp(cfg)
			if err != nil {
				return err
			}

			application.Start()
			go func() {
				application.Server.MustRun()
			}()

			slog.Info("application started", slog.String("port", cfg.App.Port))

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			<-stop

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			application.Stop(ctx)
			slog.Info("application stopped")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue review requests once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.NewApp(config.MustLoad())
			if err != nil {
				return err
			}
			defer application.Close()

			res, err := application.Sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			output.Sweep(cmd.OutOrStdout(), res.Reviews, res.Expired, res.Closed, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d request(s) or review(s) could not be processed", res.Failed)
			}
			return nil
		},
	}
}

func reviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews",
		Short: "List the reviews in flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.NewApp(config.MustLoad())
			if err != nil {
				return err
			}
			defer application.Close()

			reviews, err := application.Service.ListReviews(cmd.Context())
			if err != nil {
				return err
			}
			return output.Reviews(cmd.OutOrStdout(), reviews, time.Now())
		},
	}
}
