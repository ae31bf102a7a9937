package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/facet"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shard"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/searcher/shardcache"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/internal/shardsource"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Static-Search-Query-Engine/pkg/postgres"
)

const configKey = "config"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ssquery:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ssquery",
		Usage: "Query, package and warm static search shards",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (defaults plus SP_* overrides when empty)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Read shards from this directory (overrides shards.source)",
			},
			&cli.StringFlag{
				Name:  "segment",
				Usage: "Read shards from this segment pack (overrides shards.source)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Run one query and print the ranked results",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "facet",
						Aliases: []string{"f"},
						Usage:   `Facet selection, e.g. "bool:ssBoolPublished=true" or "num:ssNumPages=10..200"`,
					},
					&cli.StringSliceFlag{
						Name:  "scope",
						Usage: "Restrict matches to contexts tagged with this scope id",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results to print",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Number of ranked results to skip",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full result as JSON",
					},
				},
			},
			{
				Name:   "pack",
				Usage:  "Package a shard directory into a segment file or the Postgres shard table",
				Action: packCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Shard directory to read",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Segment file to write",
					},
					&cli.BoolFlag{
						Name:  "postgres",
						Usage: "Load the shards into Postgres instead of writing a segment",
					},
				},
			},
			{
				Name:      "warm",
				Usage:     "Fetch shards through the configured source chain so shared caches are filled",
				ArgsUsage: "[ref ...]",
				Action:    warmCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "preload",
						Usage: "Also warm the shards listed in shards.preload",
						Value: true,
					},
				},
			},
			{
				Name:   "bench",
				Usage:  "Load test a running search service",
				Action: benchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "url",
						Usage: "Base URL of the search service",
						Value: "http://localhost:8080",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of concurrent workers",
						Value: 10,
					},
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "Test duration",
						Value: defaultBenchDuration,
					},
					&cli.StringSliceFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Query to issue (repeatable)",
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	logger.SetupWriter(os.Stderr, c.String("log-level"), "text")

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	switch {
	case c.String("segment") != "":
		cfg.Shards.Source = "segment"
		cfg.Shards.SegmentPath = c.String("segment")
	case c.String("dir") != "":
		cfg.Shards.Source = "fs"
		cfg.Shards.Dir = c.String("dir")
	}
	if cfg.Search.StopwordsFile != "" {
		words, err := config.LoadStopwords(cfg.Search.StopwordsFile)
		if err != nil {
			return err
		}
		cfg.Search.Stopwords = words
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	var facets []facet.Selection
	for _, raw := range c.StringSlice("facet") {
		sel, err := facet.ParseSelection(raw)
		if err != nil {
			return err
		}
		facets = append(facets, sel)
	}
	if query == "" && len(facets) == 0 {
		return fmt.Errorf("a query or at least one --facet is required")
	}

	cfg := loadedConfig(c)
	stack, err := shardsource.Open(c.Context, cfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()

	cache := shardcache.New(stack.Source,
		shardcache.WithConcurrency(cfg.Shards.MaxConcurrentFetches),
		shardcache.WithFetchTimeout(cfg.Shards.FetchTimeout),
	)
	res, err := executor.New(cache, cfg.Search).Search(c.Context, executor.Request{
		Query:  query,
		Facets: facets,
		Scopes: c.StringSlice("scope"),
		Offset: c.Int("offset"),
		Limit:  c.Int("limit"),
	})
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "query:   %s\n", res.NormalizedQuery)
	if len(res.Discarded) > 0 {
		fmt.Fprintf(out, "ignored: %s\n", strings.Join(res.Discarded, ", "))
	}
	fmt.Fprintf(out, "outcome: %s (%d documents, %d contexts, %.2fms)\n",
		res.Outcome, res.DocsFound, res.ContextsFound, res.TookMS)
	for i, e := range res.Results {
		title := e.DocTitle
		if title == "" {
			title = e.DocID
		}
		fmt.Fprintf(out, "%3d. %s [%s] score=%g\n", c.Int("offset")+i+1, title, e.DocID, e.Score)
		for _, snip := range e.Contexts {
			fmt.Fprintf(out, "       %s\n", snip.Text)
		}
	}
	return nil
}

func packCommand(c *cli.Context) error {
	dir := shardsource.NewDir(c.String("from"))
	var refs []shard.Ref
	if err := dir.Walk(func(ref shard.Ref) error {
		refs = append(refs, ref)
		return nil
	}); err != nil {
		return fmt.Errorf("scanning %s: %w", c.String("from"), err)
	}

	var (
		n   int
		err error
	)
	switch {
	case c.Bool("postgres"):
		client, cerr := postgres.New(loadedConfig(c).Postgres)
		if cerr != nil {
			return cerr
		}
		defer client.Close()
		pg := shardsource.NewPostgres(client)
		if err := pg.EnsureSchema(c.Context); err != nil {
			return err
		}
		n, err = pg.Load(c.Context, dir, refs)
	case c.String("out") != "":
		n, err = shardsource.WriteSegment(c.Context, c.String("out"), dir, refs)
	default:
		return fmt.Errorf("one of --out or --postgres is required")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "packed %d of %d shards\n", n, len(refs))
	return nil
}

func warmCommand(c *cli.Context) error {
	cfg := loadedConfig(c)
	raw := c.Args().Slice()
	if c.Bool("preload") {
		raw = append(raw, cfg.Shards.Preload...)
	}
	refs := make([]shard.Ref, 0, len(raw))
	for _, r := range raw {
		ref, err := shard.ParseRef(r)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return fmt.Errorf("nothing to warm: pass shard refs or configure shards.preload")
	}

	stack, err := shardsource.Open(c.Context, cfg, nil)
	if err != nil {
		return err
	}
	defer stack.Close()
	if stack.Cache == nil {
		slog.Warn("no shared cache configured, warming only checks the shards load")
	}

	cache := shardcache.New(stack.Source, shardcache.WithFetchTimeout(cfg.Shards.FetchTimeout))
	cache.Warm(c.Context, refs)
	fmt.Fprintf(c.App.Writer, "warmed %d of %d shards via %s\n", cache.Stats().Loaded, len(refs), stack.Source.Name())
	return nil
}
