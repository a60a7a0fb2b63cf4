package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/celldiag/eiscore"
	"github.com/celldiag/eiscore/internal/processing"
	"github.com/celldiag/eiscore/internal/utils"
	"github.com/celldiag/eiscore/pkg/config"
	"github.com/celldiag/eiscore/pkg/models"
	"github.com/celldiag/eiscore/pkg/profiling"
	"github.com/celldiag/eiscore/pkg/report"
	"github.com/celldiag/eiscore/pkg/webhook"
	"github.com/celldiag/eiscore/pkg/worker"
)

func main() {
	cfg := config.Default()
	cfg.LoadEnv()

	flag.Float64Var(&cfg.RbMax, "rbmax", cfg.RbMax, "Reference bulk resistance of a fresh cell (Ohm)")
	flag.StringVar(&cfg.Method, "method", cfg.Method, "Fit method: lm, nelder-mead, lbfgs, newton")
	flag.BoolVar(&cfg.Unity, "unity", false, "Use unity weighting instead of modulus")
	flag.StringVar(&cfg.JSONPath, "o", "", "Write report JSON to a file instead of stdout")
	flag.BoolVar(&cfg.ImgSave, "imgsave", false, "Save Bode plot images next to the report")
	flag.StringVar(&cfg.ImgPath, "imgpath", cfg.ImgPath, "Bode magnitude image path (phase image gets a -phase suffix)")
	flag.StringVar(&cfg.PDFPath, "pdf", "", "Write a PDF report to this path")
	flag.StringVar(&cfg.WebhookURL, "webhook", cfg.WebhookURL, "POST finished reports to this URL")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Worker count for batch mode")
	flag.BoolVar(&cfg.Quiet, "q", false, "Quiet mode")
	flag.StringVar(&cfg.CPUProfile, "cpuprofile", "", "Write a CPU profile to this path")
	flag.StringVar(&cfg.MemProfile, "memprofile", "", "Write a heap profile to this path on exit")
	flag.Parse()

	cfg.Files = flag.Args()
	if len(cfg.Files) == 0 {
		log.Fatal("eisfit: no input CSV files given")
	}

	profiler := profiling.New(cfg.CPUProfile, cfg.MemProfile)
	if err := profiler.Start(); err != nil {
		log.Fatalf("eisfit: %v", err)
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Printf("eisfit: %v", err)
		}
	}()

	proc := processing.New(cfg)

	var sender worker.Sender
	if cfg.WebhookURL != "" {
		sender = webhook.NewClient(cfg.WebhookURL, cfg.Quiet)
	}

	var failed int
	if len(cfg.Files) == 1 {
		failed = runSingle(cfg, proc, sender)
	} else {
		failed = runBatch(cfg, proc, sender)
	}

	if !cfg.Quiet {
		profiling.LogGCStats()
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func runSingle(cfg *config.Config, proc *processing.Processor, sender worker.Sender) int {
	path := cfg.Files[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("eisfit: %v", err)
		return 1
	}

	rep, err := proc.Process(raw, cfg.RbMax)
	if err != nil {
		log.Printf("eisfit: %s: %v", path, err)
		return 1
	}

	if err := writeJSON(cfg.JSONPath, rep); err != nil {
		log.Printf("eisfit: %v", err)
		return 1
	}
	writeArtifacts(cfg, path, rep)

	if sender != nil {
		item := models.WebhookItem{RequestID: utils.NewRequestID(), Path: path, Report: rep}
		if err := sender.Send(item); err != nil {
			log.Printf("eisfit: webhook: %v", err)
		}
	}
	return 0
}

func runBatch(cfg *config.Config, proc *processing.Processor, sender worker.Sender) int {
	pool := worker.New(worker.Options{
		Workers:   cfg.Workers,
		Processor: proc.ProcessorFunc(),
		Sender:    sender,
	})

	submitted := 0
	for i, path := range cfg.Files {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Printf("eisfit: skipping %s: %v", path, err)
			continue
		}
		pool.Submit(models.WorkItem{
			ID:        i,
			RequestID: utils.NewRequestID(),
			Path:      path,
			CSV:       raw,
			RbMax:     cfg.RbMax,
		})
		submitted++
	}

	failed := len(cfg.Files) - submitted
	analyzed := 0
	for i := 0; i < submitted; i++ {
		res := <-pool.Results()
		if res.Err != nil {
			log.Printf("eisfit: %s: %v", res.Path, res.Err)
			failed++
			continue
		}
		analyzed++
		writeArtifacts(cfg, res.Path, res.Report)
	}
	pool.Shutdown()

	log.Printf("eisfit: batch done - %d analyzed, %d failed", analyzed, failed)
	return failed
}

func writeJSON(path string, rep *eiscore.AnalysisReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeArtifacts renders the optional PNG and PDF outputs. Artifact
// failures are logged but do not fail the analysis itself.
func writeArtifacts(cfg *config.Config, source string, rep *eiscore.AnalysisReport) {
	if !cfg.ImgSave && cfg.PDFPath == "" {
		return
	}

	fitted, err := report.FittedSeries(rep)
	if err != nil {
		log.Printf("eisfit: fitted overlay: %v", err)
		return
	}
	magPNG, phasePNG, err := report.RenderBode(rep.Bode, &fitted)
	if err != nil {
		log.Printf("eisfit: bode plots: %v", err)
		return
	}

	if cfg.ImgSave {
		magPath := artifactPath(cfg.ImgPath, source, len(cfg.Files) > 1, "")
		phasePath := artifactPath(cfg.ImgPath, source, len(cfg.Files) > 1, "-phase")
		if err := os.WriteFile(magPath, magPNG, 0o644); err != nil {
			log.Printf("eisfit: %v", err)
		}
		if err := os.WriteFile(phasePath, phasePNG, 0o644); err != nil {
			log.Printf("eisfit: %v", err)
		}
	}

	if cfg.PDFPath != "" {
		pdfPath := artifactPath(cfg.PDFPath, source, len(cfg.Files) > 1, "")
		if err := report.WritePDF(pdfPath, source, rep, magPNG, phasePNG); err != nil {
			log.Printf("eisfit: pdf: %v", err)
		}
	}
}

// artifactPath keeps batch outputs apart by prefixing the source file's
// base name.
func artifactPath(configured, source string, batch bool, suffix string) string {
	ext := filepath.Ext(configured)
	stem := strings.TrimSuffix(configured, ext)
	if batch {
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		stem = stem + "-" + base
	}
	return stem + suffix + ext
}
