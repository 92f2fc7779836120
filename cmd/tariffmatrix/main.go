package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bher20/tariffmatrix/internal/api"
	"github.com/bher20/tariffmatrix/internal/config"
	"github.com/bher20/tariffmatrix/internal/cron"
	"github.com/bher20/tariffmatrix/internal/migrate"
	"github.com/bher20/tariffmatrix/internal/tariff"
)

func main() {
	root := &cobra.Command{
		Use:   "tariffmatrix",
		Short: "URDB tariff resolution service",
		Long:  "TariffMatrix resolves URDB tariff documents into month-by-hour rate matrices, flat demand vectors, and rate period summaries.",
		// Running with no subcommand starts the server, matching how the
		// container image invokes the binary.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.AddCommand(serveCmd(), workerCmd(), migrateCmd(), resolveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg := config.FromEnv()
	mux := api.NewMux()

	addr := ":" + cfg.Port
	log.Printf("TariffMatrix listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the batch resolution worker",
		Long:  "Periodically re-resolves every stored tariff. Requires the postgrespool storage driver; advisory locks keep replicas from running the batch concurrently.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := cron.Run(ctx, cfg.DBDriver, cfg.DBDSN)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Run database migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			ctx := cmd.Context()

			switch args[0] {
			case "up":
				return migrate.Up(ctx, cfg.DBDriver, cfg.DBDSN)
			case "down":
				return migrate.Down(ctx, cfg.DBDriver, cfg.DBDSN)
			case "status":
				return migrate.Status(ctx, cfg.DBDriver, cfg.DBDSN)
			default:
				return fmt.Errorf("unknown migrate direction %q", args[0])
			}
		},
	}
	return cmd
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [file]",
		Short: "Resolve a URDB JSON document and print the result",
		Long:  "Reads a URDB tariff document from the given file, or stdin when the file is \"-\" or omitted, and prints the resolved matrices and period summaries as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			rec, err := tariff.DecodeDocument(data)
			if err != nil {
				return fmt.Errorf("decode document: %w", err)
			}

			out := struct {
				Utility    string             `json:"utility"`
				Name       string             `json:"name"`
				Sector     string             `json:"sector"`
				Resolution *tariff.Resolution `json:"resolution"`
			}{
				Utility:    rec.DisplayUtility(),
				Name:       rec.DisplayName(),
				Sector:     rec.DisplaySector(),
				Resolution: tariff.Resolve(rec),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
