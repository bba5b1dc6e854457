package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scanmark/scanmark/internal/aigrade"
	"github.com/scanmark/scanmark/internal/config"
	"github.com/scanmark/scanmark/internal/grader"
	"github.com/scanmark/scanmark/internal/ocr"
	"github.com/scanmark/scanmark/internal/pipeline"
	"github.com/scanmark/scanmark/internal/render"
	"github.com/scanmark/scanmark/internal/score"
	"github.com/scanmark/scanmark/internal/session"
	"github.com/scanmark/scanmark/internal/template"
)

var gradeCmd = &cobra.Command{
	Use:   "grade [flags] scans...",
	Short: "Grade a stack of scanned pages against a template",
	Long: `Grade consumes scanned pages in order (image files and/or PDFs), groups
them into student papers by their identity anchors, and grades every
template region: objective types through batched OCR, free-response
types through the AI grading service.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGrade,
}

func init() {
	gradeCmd.Flags().StringP("template", "t", "", "template file (.json, .yaml) (required)")
	gradeCmd.Flags().StringP("output", "o", "", "write graded papers JSON to file (default stdout)")
	gradeCmd.Flags().String("overlay-dir", "", "write per-page graded overlay images to this directory")
	gradeCmd.Flags().String("policy", "", "multiple-choice policy (all_or_nothing, partial_missing_no_wrong)")
	gradeCmd.Flags().Float64("tolerance", 0, "numeric tolerance for fill-in-blank answers")
	gradeCmd.Flags().Bool("ignore-units", false, "compare fill-in-blank answers numerically, ignoring units")
	gradeCmd.Flags().String("synonyms", "", "file with fill-in-blank synonym rules, one from=to per line")
	gradeCmd.Flags().Int("concurrency", 0, "max simultaneous AI grading calls per page")
	gradeCmd.Flags().Int("batch-size", 0, "max regions per stitched OCR call")
	gradeCmd.Flags().Bool("try-harder", false, "exhaustive anchor search on noisy scans")
	gradeCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9100)")
	_ = gradeCmd.MarkFlagRequired("template")

	_ = viper.BindPFlag("scoring.policy", gradeCmd.Flags().Lookup("policy"))
	_ = viper.BindPFlag("scoring.tolerance", gradeCmd.Flags().Lookup("tolerance"))
	_ = viper.BindPFlag("scoring.ignore_units", gradeCmd.Flags().Lookup("ignore-units"))
	_ = viper.BindPFlag("scoring.concurrency", gradeCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("scoring.batch_size", gradeCmd.Flags().Lookup("batch-size"))
	_ = viper.BindPFlag("scoring.try_harder", gradeCmd.Flags().Lookup("try-harder"))
	_ = viper.BindPFlag("metrics_addr", gradeCmd.Flags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("output.file", gradeCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("output.overlay", gradeCmd.Flags().Lookup("overlay-dir"))

	rootCmd.AddCommand(gradeCmd)
}

func runGrade(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	templatePath, _ := cmd.Flags().GetString("template")
	tmpl, err := template.Load(templatePath)
	if err != nil {
		return err
	}

	pages, err := render.Pages(args)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		startMetricsListener(cfg.MetricsAddr)
	}

	p, err := buildPipeline(cfg, tmpl)
	if err != nil {
		return err
	}

	sink := makeSink(cfg.Output.Overlay)

	papers, err := p.Run(cmd.Context(), pages, sink)
	if err != nil {
		return err
	}
	return writePapers(papers, cfg.Output.File)
}

// buildPipeline assembles the grading pipeline from configuration.
func buildPipeline(cfg *config.Config, tmpl *template.Template) (*pipeline.Pipeline, error) {
	ocrClient := ocr.NewClient(ocr.ClientConfig{
		BaseURL: cfg.OCR.BaseURL,
		APIKey:  cfg.OCR.APIKey,
		Timeout: cfg.OCR.Timeout(),
	})
	gradeClient := aigrade.NewClient(aigrade.ClientConfig{
		BaseURL: cfg.Grade.BaseURL,
		APIKey:  cfg.Grade.APIKey,
		Timeout: cfg.Grade.Timeout(),
	})

	b := pipeline.NewBuilder().
		WithTemplate(tmpl).
		WithOCRService(ocrClient).
		WithGradeService(gradeClient).
		WithPolicy(score.Policy(cfg.Scoring.Policy)).
		WithTolerance(cfg.Scoring.Tolerance).
		WithIgnoreUnits(cfg.Scoring.IgnoreUnits).
		WithConcurrency(cfg.Scoring.Concurrency).
		WithBatchSize(cfg.Scoring.BatchSize).
		WithTryHarder(cfg.Scoring.TryHarder).
		WithProgressCallback(pipeline.LogProgressCallback{})

	if cfg.OCR.PollMaxAttempts > 0 {
		b = b.WithPollPolicy(ocr.PollPolicy{
			Interval:    time.Duration(cfg.OCR.PollIntervalMS) * time.Millisecond,
			MaxAttempts: cfg.OCR.PollMaxAttempts,
		})
	}
	if cfg.Scoring.SynonymsFile != "" {
		rules, err := os.ReadFile(cfg.Scoring.SynonymsFile)
		if err != nil {
			return nil, fmt.Errorf("read synonyms file: %w", err)
		}
		b = b.WithSynonyms(string(rules))
	}
	return b.Build()
}

// makeSink writes per-page graded overlays for papers as they close.
func makeSink(overlayDir string) pipeline.Sink {
	if overlayDir == "" {
		return nil
	}
	return func(paper *session.StudentPaper) {
		for _, page := range paper.Pages {
			overlay := grader.RenderOverlay(page.Image, resultsForPage(paper, page))
			if overlay == nil {
				continue
			}
			name := fmt.Sprintf("%s_page%d.png", paper.ID, page.TemplatePage)
			if err := imaging.Save(overlay, filepath.Join(overlayDir, name)); err != nil {
				slog.Warn("overlay write failed", "paper", paper.ID, "page", page.TemplatePage, "error", err)
			}
		}
	}
}

// resultsForPage selects the results graded on the given page of the paper.
func resultsForPage(paper *session.StudentPaper, page session.Page) []session.GradingResult {
	var out []session.GradingResult
	for _, r := range paper.Results {
		if r.Page == page.TemplatePage {
			out = append(out, r)
		}
	}
	return out
}

func writePapers(papers []*session.StudentPaper, path string) error {
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func startMetricsListener(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec // G114: metrics listener lifetime is the process lifetime
			slog.Warn("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
}
