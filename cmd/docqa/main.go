package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/observability"
	"docqa/internal/service"
	"docqa/internal/tui"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Ingest documents into a vector index and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")

	// withApp loads config, sets up logging and tracing and assembles the
	// pipeline around fn.
	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr)

		ctx := cmd.Context()
		tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
			ServiceName:    "docqa",
			ServiceVersion: "0.1.0",
			Environment:    cfg.Tracing.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return err
		}
		defer func() { _ = tp.Shutdown(context.Background()) }()

		a, err := assemble(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a)
	}

	var (
		docID        string
		noSummary    bool
		noFlashcards bool
		jsonOut      bool
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest documents and save the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if docID != "" && len(args) > 1 {
				return errors.New("--id can only be used with a single file")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				opts := service.IngestOptions{Summarize: !noSummary, Flashcards: !noFlashcards}
				return ingestFiles(ctx, cmd, a.pipeline, args, docID, opts, jsonOut)
			})
		},
	}
	ingestCmd.Flags().StringVar(&docID, "id", "", "Document id (defaults to the file name without extension)")
	ingestCmd.Flags().BoolVar(&noSummary, "no-summary", false, "Skip summarization")
	ingestCmd.Flags().BoolVar(&noFlashcards, "no-flashcards", false, "Skip flashcard generation")
	ingestCmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")

	var buildSummarize bool
	buildCmd := &cobra.Command{
		Use:   "build-index <dir>",
		Short: "Ingest every supported file in a directory and save the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.pipeline.IngestDir(ctx, args[0], service.IngestOptions{Summarize: buildSummarize})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents (%d chunks), skipped %d\n", len(res.Ingested), res.Chunks, len(res.Skipped))
				for _, s := range res.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "  skipped %s\n", s)
				}
				return nil
			})
		},
	}
	buildCmd.Flags().BoolVar(&buildSummarize, "summarize", false, "Also summarize each document")
	buildCmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")

	var topK int
	queryCmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Answer a question from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.pipeline.Query(ctx, strings.Join(args, " "), topK)
				if err != nil {
					return err
				}
				return printQuery(cmd.OutOrStdout(), res, jsonOut)
			})
		},
	}
	queryCmd.Flags().IntVar(&topK, "top-k", 0, "Number of chunks to retrieve (defaults to query.top_k)")
	queryCmd.Flags().BoolVar(&jsonOut, "json", false, "Output results as JSON")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Interactive query console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				st := a.pipeline.Stats()
				header := fmt.Sprintf("%d vectors, %s embedder", st.Vectors, st.Embedder)
				m := tui.New(a.pipeline, a.cfg.Query.TopK, header)
				_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
				return err
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show index size and storage paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				st := a.pipeline.Stats()
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"stats":      st,
						"index_type": a.cfg.Index.Type,
						"index_path": a.cfg.IndexPath(),
						"meta_path":  a.cfg.MetaPath(),
					})
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "index:     %s\n", a.cfg.Index.Type)
				fmt.Fprintf(w, "vectors:   %d\n", st.Vectors)
				fmt.Fprintf(w, "dimension: %d\n", st.Dimension)
				fmt.Fprintf(w, "embedder:  %s\n", st.Embedder)
				fmt.Fprintf(w, "files:     %s, %s\n", a.cfg.IndexPath(), a.cfg.MetaPath())
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	rootCmd.AddCommand(ingestCmd, buildCmd, queryCmd, tuiCmd, statusCmd)
	return rootCmd
}

// ingestFiles ingests paths in order. Files whose text cannot be extracted
// are reported and skipped; any other failure stops the run. Whatever was
// ingested is saved either way.
func ingestFiles(ctx context.Context, cmd *cobra.Command, p *service.Pipeline, paths []string, docID string, opts service.IngestOptions, asJSON bool) error {
	var skipped, ingested int
	for _, path := range paths {
		id := docID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		res, err := p.Ingest(ctx, path, id, opts)
		if errors.Is(err, domain.ErrExtraction) {
			skipped++
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", path, err)
			continue
		}
		if err != nil {
			if ingested > 0 {
				if serr := p.Save(ctx); serr != nil {
					return errors.Join(err, serr)
				}
			}
			return err
		}
		ingested++
		if err := printIngest(cmd.OutOrStdout(), res, asJSON); err != nil {
			return err
		}
	}
	if ingested > 0 {
		if err := p.Save(ctx); err != nil {
			return err
		}
	}
	if skipped > 0 {
		return fmt.Errorf("skipped %d of %d files", skipped, len(paths))
	}
	return nil
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

func printIngest(w io.Writer, res *service.IngestResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s: %d chunks (%s)\n", res.DocumentID, res.ChunkCount, res.Strategy)
	if res.SummaryPack != nil {
		fmt.Fprintf(w, "\nSummary:\n%s\n", res.SummaryPack.FinalSummary)
	}
	if len(res.Flashcards) > 0 {
		fmt.Fprintf(w, "\nFlashcards:\n")
		for i, c := range res.Flashcards {
			fmt.Fprintf(w, "%2d. %s\n    -> %s\n", i+1, c.Question, c.Answer)
		}
	}
	return nil
}

func printQuery(w io.Writer, res *service.QueryResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s\n", res.Answer)
	if len(res.Sources) > 0 {
		fmt.Fprintf(w, "\nSources:\n")
		for i, s := range res.Sources {
			loc := s.DocumentID
			if s.Page != nil {
				loc = fmt.Sprintf("%s p.%d", loc, *s.Page)
			}
			fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, loc, preview(s.Text, 120))
		}
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
