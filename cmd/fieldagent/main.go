package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"billboardwatch/config"
	"billboardwatch/handlers"
	"billboardwatch/service"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "fieldagent",
		Short:   "Billboard compliance capture and sync agent",
		Version: version,
	}
	root.AddCommand(serveCmd(), captureCmd(), queueCmd(), drainCmd(), profileCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService() (*config.Config, *service.Service, error) {
	cfg := config.Load()
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	svc, err := service.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent with its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, svc, err := newService()
			if err != nil {
				return err
			}
			if err := svc.Start(); err != nil {
				return err
			}
			defer func() {
				if err := svc.Stop(); err != nil {
					log.Errorf("shutdown: %v", err)
				}
			}()

			router := handlers.SetupRouter(handlers.NewHandlers(svc))
			errChan := make(chan error, 1)
			go func() {
				errChan <- router.Run(":" + cfg.Port)
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errChan:
				return err
			case sig := <-sigChan:
				log.Infof("received %s, shutting down", sig)
				return nil
			}
		},
	}
}

func captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Run one capture session and enqueue the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Stop()

			report, err := svc.Capture(context.Background())
			if err != nil {
				return err
			}
			if n := len(report.Analysis.DetectedViolations); n > 0 {
				fmt.Printf("%d potential violation(s) detected\n", n)
			} else {
				fmt.Println("No violations detected")
			}
			fmt.Printf("report %s (%s) queued: %s\n", report.ID, report.Type, report.Description)
			return nil
		},
	}
}

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List pending and failed queue entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Stop()

			pending, err := svc.Queue().ListPending()
			if err != nil {
				return err
			}
			failed, err := svc.Queue().ListFailed()
			if err != nil {
				return err
			}
			for _, e := range pending {
				fmt.Printf("%-10s %s retries=%d %s\n", e.SyncState, e.Report.ID, e.RetryCount, e.Report.Type)
			}
			for _, e := range failed {
				fmt.Printf("%-10s %s retries=%d %s\n", e.SyncState, e.Report.ID, e.RetryCount, e.Report.Type)
			}
			fmt.Printf("%d pending, %d failed\n", len(pending), len(failed))
			return nil
		},
	}
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run one synchronous sync pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Stop()
			return svc.DrainOnce(context.Background())
		},
	}
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show points, badges and challenge progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Stop()

			state := svc.Profile()
			fmt.Printf("points: %d\n", state.Points)
			fmt.Printf("badges: %v\n", state.Badges)
			for _, c := range state.Challenges {
				fmt.Printf("challenge %s: %d/%d until %s\n",
					c.ChallengeID, c.Progress, c.Target, c.WindowEnd.Format("2006-01-02"))
			}
			return nil
		},
	}
}
