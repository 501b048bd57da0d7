package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/omicsbio/hgtscan/internal/duckdb"
	"github.com/omicsbio/hgtscan/internal/hits"
	"github.com/omicsbio/hgtscan/internal/output"
	"github.com/omicsbio/hgtscan/internal/score"
	"github.com/omicsbio/hgtscan/internal/taxonomy"
)

type scanOptions struct {
	nodes    string
	names    string
	merged   string
	taxTable string

	ingroup int
	skip    int

	outPath        string
	candidatesPath string
	warningsPath   string
	dbPath         string
	workers        int
}

func newScanCmd(verbose *bool) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [flags] <hits-file>",
		Short: "Score queries in a Diamond/BLAST tabular file for HGT evidence",
		Long: `Score every query in a Diamond/BLAST tabular hits file against the
taxonomy tree: hits are classified ingroup or outgroup relative to the
--ingroup clade, aggregated per query and taxon, and reduced to the HGT
Index (hU), Alien Index (AI) and Consensus Hit Support. Queries whose
outgroup evidence passes the configured thresholds are reported as HGT
candidates.`,
		Example: `  # Metazoa ingroup, skipping hits inside the query's own phylum (Rotifera)
  hgtscan scan --nodes nodes.dmp --names names.dmp --merged merged.dmp \
    --ingroup 33208 --skip 10190 --out results.tsv --candidates hgt.tsv hits.tsv

  # Combined taxonomy table, tab-delimited hits from stdin
  hgtscan scan --taxdb taxa.tsv --ingroup 33208 --delimiter tab -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(*verbose)
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer logger.Sync()

			return runScan(args[0], opts, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.nodes, "nodes", "", "NCBI nodes.dmp file")
	flags.StringVar(&opts.names, "names", "", "NCBI names.dmp file")
	flags.StringVar(&opts.merged, "merged", "", "NCBI merged.dmp file (optional)")
	flags.StringVar(&opts.taxTable, "taxdb", "", "Combined taxonomy table (taxid, rank, name, parent), alternative to --nodes/--names")
	flags.IntVar(&opts.ingroup, "ingroup", 0, "Taxid of the ingroup threshold clade (required)")
	flags.IntVar(&opts.skip, "skip", 0, "Taxid of a clade to exclude entirely, e.g. the query organism's own phylum")
	flags.Float64("support", 90, "Minimum consensus hit support (%) for candidacy")
	flags.Float64("hu", 30, "Minimum hU (and AI) for candidacy")
	flags.Int("evalue-col", hits.ColEvalue, "1-based e-value column in the hits file")
	flags.Int("bitscore-col", hits.ColBitscore, "1-based bitscore column in the hits file")
	flags.Int("taxon-col", hits.ColTaxon, "1-based taxid column in the hits file")
	flags.String("delimiter", "whitespace", "Hit file delimiter: whitespace or tab")
	flags.StringVarP(&opts.outPath, "out", "o", "", "Results table output file (default: stdout)")
	flags.StringVar(&opts.candidatesPath, "candidates", "", "Candidates table output file (optional)")
	flags.StringVar(&opts.warningsPath, "warnings", "", "Warnings table output file (optional)")
	flags.StringVar(&opts.dbPath, "db", "", "DuckDB database to persist results (optional)")
	flags.IntVar(&opts.workers, "workers", 0, "Scoring worker count (0 = all CPUs)")

	// Thresholds and column layout may also come from ~/.hgtscan.yaml or
	// HGTSCAN_* environment variables.
	for _, name := range []string{"support", "hu", "evalue-col", "bitscore-col", "taxon-col", "delimiter"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	cmd.MarkFlagRequired("ingroup")

	return cmd
}

func runScan(hitsPath string, opts *scanOptions, logger *zap.Logger) error {
	if opts.ingroup <= 0 {
		return errors.New("--ingroup must be a positive taxid")
	}

	store, err := loadTaxonomy(opts, logger)
	if err != nil {
		return err
	}

	delim, err := parseDelimiter(viper.GetString("delimiter"))
	if err != nil {
		return err
	}
	cols := hits.Columns{
		Evalue:   viper.GetInt("evalue-col"),
		Bitscore: viper.GetInt("bitscore-col"),
		Taxon:    viper.GetInt("taxon-col"),
	}
	if cols.Evalue < 1 || cols.Bitscore < 1 || cols.Taxon < 1 {
		return errors.New("column positions are 1-based and must be positive")
	}

	parser, err := hits.NewParser(hitsPath, cols, delim)
	if err != nil {
		return err
	}
	defer parser.Close()

	out, closeOut, err := openOutput(opts.outPath)
	if err != nil {
		return err
	}
	defer closeOut()

	ingroupName := store.Name(opts.ingroup)
	results := output.NewResultWriter(out, ingroupName)
	if err := results.WriteHeader(); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}

	var candidates *output.ResultWriter
	if opts.candidatesPath != "" {
		f, err := os.Create(opts.candidatesPath)
		if err != nil {
			return fmt.Errorf("create candidates file: %w", err)
		}
		defer f.Close()
		candidates = output.NewResultWriter(f, ingroupName)
		if err := candidates.WriteHeader(); err != nil {
			return fmt.Errorf("write candidates header: %w", err)
		}
	}

	var warnings *output.WarningWriter
	if opts.warningsPath != "" {
		f, err := os.Create(opts.warningsPath)
		if err != nil {
			return fmt.Errorf("create warnings file: %w", err)
		}
		defer f.Close()
		warnings = output.NewWarningWriter(f)
		if err := warnings.WriteHeader(); err != nil {
			return fmt.Errorf("write warnings header: %w", err)
		}
	}

	agg := score.NewAggregator(store, opts.ingroup, opts.skip)
	agg.SetLogger(logger)

	hitCount, parseErrors, err := ingestHits(parser, agg, warnings, logger)
	if err != nil {
		return err
	}
	logger.Info("aggregation complete",
		zap.Int("hits", hitCount),
		zap.Int("accepted", agg.Accepted()),
		zap.Int("rejected", agg.Rejects().Total()),
		zap.Int("parse_errors", parseErrors),
		zap.Int("queries", len(agg.Queries())))

	engine := score.NewEngine(store, opts.ingroup)
	selector := score.Selector{
		HUThreshold:      viper.GetFloat64("hu"),
		SupportThreshold: viper.GetFloat64("support"),
	}

	items := make(chan score.WorkItem, 64)
	go func() {
		defer close(items)
		for seq, q := range agg.Queries() {
			items <- score.WorkItem{Seq: seq, QueryID: q, Evidence: agg.Evidence(q)}
		}
	}()

	var stats score.Stats
	var dbRows []duckdb.ResultRow

	collectErr := score.OrderedCollect(engine.ParallelScore(items, opts.workers), func(wr score.WorkResult) error {
		if wr.Err != nil {
			return fmt.Errorf("score query %s: %w", wr.QueryID, wr.Err)
		}
		d := selector.Decide(wr.Result)
		stats.Record(d, selector)

		if err := results.Write(d.Result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		if d.Candidate && candidates != nil {
			if err := candidates.Write(d.Result); err != nil {
				return fmt.Errorf("write candidate: %w", err)
			}
		}
		if opts.dbPath != "" {
			dbRows = append(dbRows, duckdb.ResultRow{
				Ingroup:   ingroupName,
				Candidate: d.Candidate,
				Result:    d.Result,
			})
		}
		return nil
	})
	if collectErr != nil {
		return collectErr
	}

	if err := results.Flush(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	if candidates != nil {
		if err := candidates.Flush(); err != nil {
			return fmt.Errorf("flush candidates: %w", err)
		}
	}
	if warnings != nil {
		if err := warnings.Flush(); err != nil {
			return fmt.Errorf("flush warnings: %w", err)
		}
	}

	if opts.dbPath != "" {
		db, err := duckdb.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.WriteResults(dbRows); err != nil {
			return fmt.Errorf("persist results: %w", err)
		}
		logger.Info("results persisted", zap.String("db", opts.dbPath), zap.Int("rows", len(dbRows)))
	}

	stats.LogSummary(logger)
	return nil
}

// ingestHits streams the hits file into the aggregator. Malformed rows are
// logged and skipped; a malformed taxonomy aborts.
func ingestHits(parser *hits.Parser, agg *score.Aggregator, warnings *output.WarningWriter, logger *zap.Logger) (hitCount, parseErrors int, err error) {
	for {
		h, err := parser.Next()
		if err != nil {
			var perr *hits.ParseError
			if errors.As(err, &perr) {
				parseErrors++
				logger.Warn("skipping malformed hit line",
					zap.Int("line", perr.Line),
					zap.String("error", perr.Message))
				continue
			}
			return hitCount, parseErrors, fmt.Errorf("read hits: %w", err)
		}
		if h == nil {
			return hitCount, parseErrors, nil
		}
		hitCount++

		reason, err := agg.Ingest(h)
		if err != nil {
			return hitCount, parseErrors, err
		}
		if reason != score.RejectNone && warnings != nil {
			if err := warnings.Write(h.QueryID, h.Line, h.TaxonRaw, reason); err != nil {
				return hitCount, parseErrors, fmt.Errorf("write warning: %w", err)
			}
		}
	}
}

// loadTaxonomy builds the taxonomy store from either the combined table or
// the NCBI dump files. A missing taxonomy source is fatal.
func loadTaxonomy(opts *scanOptions, logger *zap.Logger) (*taxonomy.Store, error) {
	store := taxonomy.NewStore()

	switch {
	case opts.taxTable != "":
		if err := taxonomy.LoadTable(store, opts.taxTable); err != nil {
			return nil, err
		}
	case opts.nodes != "":
		if err := taxonomy.LoadNodes(store, opts.nodes); err != nil {
			return nil, err
		}
		if opts.names != "" {
			if err := taxonomy.LoadNames(store, opts.names); err != nil {
				return nil, err
			}
		}
		if opts.merged != "" {
			if err := taxonomy.LoadMerged(store, opts.merged); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("taxonomy source required: --taxdb or --nodes (with optional --names/--merged)")
	}

	logger.Info("taxonomy loaded", zap.Int("taxa", store.Len()))
	return store, nil
}

func parseDelimiter(s string) (hits.Delimiter, error) {
	switch s {
	case "whitespace", "":
		return hits.DelimWhitespace, nil
	case "tab":
		return hits.DelimTab, nil
	default:
		return 0, fmt.Errorf("unknown delimiter %q (use whitespace or tab)", s)
	}
}

// openOutput opens the results destination, defaulting to stdout.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
