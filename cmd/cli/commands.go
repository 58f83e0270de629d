package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/yourorg/stoplist/internal/batch"
	"github.com/yourorg/stoplist/internal/config"
	appdb "github.com/yourorg/stoplist/internal/db"
	"github.com/yourorg/stoplist/internal/ebus"
	"github.com/yourorg/stoplist/internal/models"
	"github.com/yourorg/stoplist/internal/stopcsv"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "fetch the stop list of one route in one direction",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "route", Aliases: []string{"r"}, Usage: "route id, prompted when empty"},
			&cli.StringFlag{Name: "direction", Aliases: []string{"d"}, Usage: "go or come, prompted when empty"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "CSV path (default <EBUS_OUTPUT_DIR>/bus_route_<id>_<dir>.csv)"},
		},
		Action: func(c *cli.Context) error {
			cfg, fetcher, err := setup()
			if err != nil {
				return err
			}

			in := bufio.NewReader(c.App.Reader)
			routeID, dir, err := resolveRouteArgs(in, c.App.Writer, c.String("route"), c.String("direction"))
			if err != nil {
				return err
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			stops, err := fetcher.Fetch(ctx, routeID, dir)
			if err != nil {
				return err
			}
			printStops(c.App.Writer, stops)

			if len(stops) == 0 {
				fmt.Fprintln(c.App.Writer, "No stops found; the page layout may have changed (set EBUS_DEBUG_HTML_DIR to inspect it).")
				return nil
			}

			path := c.String("output")
			if path == "" {
				path = stopcsv.FileName(cfg.OutputDir, routeID, dir)
			}
			if err := stopcsv.WriteFile(path, stops); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Saved %d stops to %s\n", len(stops), path)
			return nil
		},
	}
}

func routesCommand() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "scrape the route catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "CSV path (default <EBUS_OUTPUT_DIR>/routes.csv)"},
		},
		Action: func(c *cli.Context) error {
			cfg, fetcher, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			routes, err := fetcher.ListRoutes(ctx)
			if err != nil {
				return err
			}

			path := c.String("output")
			if path == "" {
				path = filepath.Join(cfg.OutputDir, "routes.csv")
			}
			if err := stopcsv.WriteRoutesFile(path, routes); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Saved %d routes to %s\n", len(routes), path)
			return nil
		},
	}
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "fetch many routes in both directions",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "route", Aliases: []string{"r"}, Usage: "route id, repeatable"},
			&cli.StringFlag{Name: "routes-file", Usage: "route catalog CSV (route_id,route_name) as written by the routes command"},
			&cli.BoolFlag{Name: "all", Usage: "scrape the route catalog first and fetch every route"},
			&cli.BoolFlag{Name: "force", Usage: "refetch routes whose CSV already exists"},
			&cli.IntFlag{Name: "workers", Usage: "concurrent browser sessions (default BATCH_WORKERS)"},
		},
		Action: func(c *cli.Context) error {
			cfg, fetcher, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signalContext(c.Context)
			defer stop()

			routeIDs, err := collectRouteIDs(ctx, c.StringSlice("route"), c.String("routes-file"), c.Bool("all"), fetcher)
			if err != nil {
				return err
			}
			if len(routeIDs) == 0 {
				return errors.New("no routes given: use --route, --routes-file or --all")
			}

			workers := cfg.BatchWorkers
			if c.IsSet("workers") {
				workers = c.Int("workers")
			}
			runner := batch.NewRunner(fetcher, batch.Options{
				OutputDir: cfg.OutputDir,
				Workers:   workers,
				Force:     c.Bool("force"),
			})

			if cfg.DB.Enabled() {
				conn, err := appdb.Connect(ctx, cfg.DB)
				if err != nil {
					return err
				}
				defer conn.Close()
				if err := appdb.EnsureSchema(ctx, conn, cfg.DB.SkipSchema); err != nil {
					return err
				}
				runner.WithArchive(appdb.NewArchive(conn))
			}

			summary, err := runner.Run(ctx, routeIDs)
			if summary != nil {
				printSummary(c.App.Writer, summary)
			}
			if err != nil {
				return err
			}
			return batchExit(summary)
		},
	}
}

// batchExit turns a finished run into exit code 2 when any pair failed.
func batchExit(s *models.RunSummary) error {
	if s != nil && s.Failed > 0 {
		return cli.Exit(fmt.Sprintf("%d route directions failed", s.Failed), 2)
	}
	return nil
}

// healthCommand pings a running server.
func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check a running stoplist server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://127.0.0.1:8080", EnvVars: []string{"BASE_URL"}},
		},
		Action: func(c *cli.Context) error {
			url := strings.TrimRight(c.String("url"), "/") + "/api/health"
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			defer resp.Body.Close()
			fmt.Fprintln(c.App.Writer, "Health status:", resp.Status)
			if resp.StatusCode != http.StatusOK {
				return cli.Exit(fmt.Sprintf("health check failed: %s", resp.Status), 1)
			}
			return nil
		},
	}
}

func setup() (*config.Config, *ebus.Fetcher, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.FetcherOptions()
	if err != nil {
		return nil, nil, err
	}
	browser := ebus.NewChromeBrowser(cfg.BrowserOptions())
	return cfg, ebus.NewFetcher(browser, opts), nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// resolveRouteArgs fills in missing arguments by prompting on in.
func resolveRouteArgs(in *bufio.Reader, out io.Writer, routeID, direction string) (string, models.Direction, error) {
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		fmt.Fprint(out, "Route id: ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
		routeID = strings.TrimSpace(line)
	}
	if routeID == "" {
		return "", "", fmt.Errorf("%w: route id is empty", ebus.ErrInvalidArgument)
	}

	if strings.TrimSpace(direction) == "" {
		fmt.Fprint(out, "Direction (go/come): ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", err
		}
		direction = line
	}
	dir, ok := models.ParseDirection(direction)
	if !ok {
		return "", "", fmt.Errorf("%w: direction %q must be go or come", ebus.ErrInvalidArgument, strings.TrimSpace(direction))
	}
	return routeID, dir, nil
}

// collectRouteIDs merges flags, the routes file and, with all, the live catalog.
func collectRouteIDs(ctx context.Context, flagIDs []string, routesFile string, all bool, fetcher *ebus.Fetcher) ([]string, error) {
	ids := append([]string{}, flagIDs...)

	if routesFile != "" {
		routes, err := stopcsv.ReadRoutesFile(routesFile)
		if err != nil {
			return nil, fmt.Errorf("read routes file: %w", err)
		}
		for _, r := range routes {
			ids = append(ids, r.RouteID)
		}
	}

	if all {
		routes, err := fetcher.ListRoutes(ctx)
		if err != nil {
			return nil, err
		}
		log.Info().Int("routes", len(routes)).Msg("using the live route catalog")
		for _, r := range routes {
			ids = append(ids, r.RouteID)
		}
	}

	return ids, nil
}

func printStops(w io.Writer, stops []models.Stop) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tARRIVAL\tSTOP ID\tLAT\tLON")
	for _, s := range stops {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.6f\t%.6f\n", s.StopNumber, s.StopName, s.ArrivalInfo, s.StopID, s.Latitude, s.Longitude)
	}
	tw.Flush()
}

func printSummary(w io.Writer, s *models.RunSummary) {
	fmt.Fprintf(w, "Run %s %s in %.1fs: %d processed, %d empty, %d skipped, %d failed, %d stops saved\n",
		s.RunID, s.Status, s.DurationSeconds, s.Processed, s.Empty, s.Skipped, s.Failed, s.StopsSaved)
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  FAILED %s (%s): %s\n", f.RouteID, f.Direction, f.Error)
	}
}
