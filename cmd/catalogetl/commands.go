package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalogetl/internal/httpapi"
	"catalogetl/internal/ingest"
	"catalogetl/internal/jobs"
	"catalogetl/internal/report"

	"github.com/spf13/cobra"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "catalogetl",
		Short:         "Load catalogue datasets, apply update batches and write analysis reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "log format (text or json)")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	pf.StringVar(&g.traceFile, "trace-file", "", "write JSON trace spans to this file")
	pf.BoolVar(&g.gops, "gops", false, "start the gops diagnostics agent")

	root.AddCommand(
		propertiesCommand(g),
		reviewsCommand(g),
		tracksCommand(g),
		productsCommand(g),
		moviesCommand(g),
		applyCommand(g),
		inspectUpdatesCommand(),
		convertCommand(),
		diffCommand(g),
		serveCommand(g),
	)
	return root
}

// runJob opens the application, runs fn and prints its summary.
func runJob(cmd *cobra.Command, g *globalFlags, fn func(context.Context, *app) (jobs.Summary, error)) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := g.openApp(ctx, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	sum, err := fn(ctx, a)
	if err != nil {
		return err
	}
	newPrinter(cmd.OutOrStdout()).summary(sum)
	return nil
}

func propertiesCommand(g *globalFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Load property listings and write the sorted, filtered and statistics reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, g, func(ctx context.Context, a *app) (jobs.Summary, error) {
				return jobs.Properties(ctx, a.env(), a.input(pick(input, a.cfg.Inputs.Properties)))
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "properties JSON file")
	return cmd
}

func reviewsCommand(g *globalFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Load property reviews and write the rating report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, g, func(ctx context.Context, a *app) (jobs.Summary, error) {
				return jobs.Reviews(ctx, a.env(), a.input(pick(input, a.cfg.Inputs.Reviews)))
			})
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "reviews CSV file")
	return cmd
}

func tracksCommand(g *globalFlags) *cobra.Command {
	var text, pickle string
	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "Merge both track sources and write the track reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, g, func(ctx context.Context, a *app) (jobs.Summary, error) {
				return jobs.Tracks(ctx, a.env(), jobs.TracksInput{
					Text:   a.input(pick(text, a.cfg.Inputs.TracksText)),
					Pickle: a.input(pick(pickle, a.cfg.Inputs.TracksPkl)),
				})
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "block text track file")
	cmd.Flags().StringVar(&pickle, "pickle", "", "pickled track list")
	return cmd
}

func productsCommand(g *globalFlags) *cobra.Command {
	var products, updates string
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Load the product catalogue, apply the update batch and write the analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, g, func(ctx context.Context, a *app) (jobs.Summary, error) {
				return jobs.Products(ctx, a.env(), jobs.ProductsInput{
					Products: a.input(pick(products, a.cfg.Inputs.Products)),
					Updates:  a.input(pick(updates, a.cfg.Inputs.Updates)),
				})
			})
		},
	}
	cmd.Flags().StringVar(&products, "products", "", "products CSV file")
	cmd.Flags().StringVar(&updates, "updates", "", "update batch (.pkl, .json or .jsonl)")
	return cmd
}

func moviesCommand(g *globalFlags) *cobra.Command {
	var csvPath, jsonPath string
	cmd := &cobra.Command{
		Use:   "movies",
		Short: "Load both movie sources and write the movie analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, g, func(ctx context.Context, a *app) (jobs.Summary, error) {
				return jobs.Movies(ctx, a.env(), jobs.MoviesInput{
					CSV:       a.input(pick(csvPath, a.cfg.Inputs.MoviesCSV)),
					JSONLines: a.input(pick(jsonPath, a.cfg.Inputs.MoviesJSON)),
				})
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "filtered movie CSV file")
	cmd.Flags().StringVar(&jsonPath, "json", "", "movie JSON lines file")
	return cmd
}

func applyCommand(g *globalFlags) *cobra.Command {
	var updates string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply an update batch to the stored product catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, g, func(ctx context.Context, a *app) (jobs.Summary, error) {
				sum, res, err := jobs.Apply(ctx, a.env(), a.input(pick(updates, a.cfg.Inputs.Updates)), dryRun)
				if err == nil && dryRun {
					for _, c := range res.Changes {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.Action, c.Name)
					}
				}
				return sum, err
			})
		},
	}
	cmd.Flags().StringVar(&updates, "updates", "", "update batch (.pkl, .json or .jsonl)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "roll the batch back and report the changes it would make")
	return cmd
}

func inspectUpdatesCommand() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "inspect-updates <file>",
		Short: "List the operations used by an update batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds, err := ingest.ReadUpdates(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d commands\n", len(cmds))
			for _, m := range ingest.UniqueMethods(cmds) {
				fmt.Fprintln(out, m)
			}
			if dump {
				for _, c := range cmds {
					fmt.Fprintln(out, c.String())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print every command")
	return cmd
}

func convertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert source datasets",
	}
	movies := &cobra.Command{
		Use:   "movies <in.csv> <out.csv>",
		Short: "Project the full movie export onto the columns the movies job reads",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := jobs.ConvertMovies(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d movies to %s\n", n, args[1])
			return nil
		},
	}
	var comma string
	csv2json := &cobra.Command{
		Use:   "csv2json <in.csv> <out.json>",
		Short: "Render a CSV file as a JSON array of objects",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sep := []rune(comma)
			if len(sep) != 1 {
				return fmt.Errorf("comma must be a single character, got %q", comma)
			}
			n, err := jobs.CSVToJSON(args[0], args[1], sep[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, args[1])
			return nil
		},
	}
	csv2json.Flags().StringVar(&comma, "comma", string(ingest.Comma), "field separator")
	cmd.AddCommand(movies, csv2json)
	return cmd
}

func diffCommand(g *globalFlags) *cobra.Command {
	var files bool
	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Compare two report artifacts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			read := os.ReadFile
			if !files {
				var a *app
				if a, err = g.openApp(cmd.Context(), cmd.ErrOrStderr(), false); err != nil {
					return err
				}
				defer func() {
					if cerr := a.close(); cerr != nil && err == nil {
						err = cerr
					}
				}()
				read = func(key string) ([]byte, error) { return report.Read(cmd.Context(), a.artifacts, key) }
			}
			before, err := read(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			after, err := read(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			d, err := report.Compare(before, after)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).diff(args[0], args[1], d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&files, "files", false, "treat arguments as local file paths instead of artifact keys")
	return cmd
}

func serveCommand(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored reports and process metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := g.openApp(ctx, cmd.ErrOrStderr(), false)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			srv := &http.Server{
				Addr: pick(addr, a.cfg.Serve.Addr),
				Handler: httpapi.NewServer(a.artifacts,
					httpapi.WithMetrics(a.prom.Registry()),
					httpapi.WithLogger(a.logger),
				),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			a.logger.Info("serving reports", "addr", srv.Addr, "blob", a.cfg.Blob.Driver)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	return cmd
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
