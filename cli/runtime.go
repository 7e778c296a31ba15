package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/Xangel0s/docqr-Flex-sub000/config"
	"github.com/Xangel0s/docqr-Flex-sub000/inspect"
	"github.com/Xangel0s/docqr-Flex-sub000/lock"
	"github.com/Xangel0s/docqr-Flex-sub000/orchestrator"
	"github.com/Xangel0s/docqr-Flex-sub000/placement"
	"github.com/Xangel0s/docqr-Flex-sub000/stamp"
	"github.com/Xangel0s/docqr-Flex-sub000/storage"
	"github.com/Xangel0s/docqr-Flex-sub000/store"
)

func newInspector(cfg *config.AppConfig, logger *log.Logger) (*inspect.Inspector, error) {
	unit, err := placement.ParseUnit(cfg.Inspect.Unit)
	if err != nil {
		return nil, err
	}
	return inspect.New(inspect.WithUnit(unit), inspect.WithLogger(logger)), nil
}

// buildOrchestrator wires both strategies from the configured limits.
func buildOrchestrator(cfg *config.AppConfig, deps orchestrator.Deps, observer orchestrator.Observer, logger *log.Logger) (*orchestrator.Orchestrator, error) {
	insp, err := newInspector(cfg, logger)
	if err != nil {
		return nil, err
	}
	stampOpts := stamp.Options{
		Validator:        cfg.Placement.Validator(),
		MaxExtraPages:    cfg.Embedding.MaxExtraPages,
		MaxOverlayPixels: cfg.Embedding.MaxOverlayPixels,
		Logger:           logger,
	}
	deps.Inspector = insp
	deps.Primary = stamp.NewPrimary(insp, stampOpts)
	deps.Fallback = stamp.NewFallback(insp, nil, stampOpts)

	return orchestrator.New(deps, orchestrator.Options{
		Workers:    cfg.Embedding.Workers,
		JobTimeout: cfg.Embedding.JobTimeout,
		Validator:  stampOpts.Validator,
		Observer:   observer,
		Logger:     logger,
	})
}

// loadReplacement reads a pre-rendered page 1. PDFs are recognized by their
// header, anything else is taken as a raster of width x height.
func loadReplacement(path string, width, height float64, unit string) (*stamp.Replacement, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replacement: %w", err)
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return &stamp.Replacement{PDF: data}, nil
	}
	rep := &stamp.Replacement{Image: data, Width: width, Height: height}
	if unit != "" {
		if rep.Unit, err = placement.ParseUnit(unit); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

// localEmbed is a one-shot embed of source into output. The document lives
// in memory for the duration of the job.
type localEmbed struct {
	cfg         *config.AppConfig
	logger      *log.Logger
	observer    orchestrator.Observer
	id          string
	source      []byte
	overlay     []byte
	replacement *stamp.Replacement
	output      string
}

func (e localEmbed) run(ctx context.Context, p placement.Canonical) (orchestrator.EmbedResult, error) {
	files := storage.NewMemory()
	records := store.NewMemory()
	src := filepath.ToSlash(filepath.Join("originals", e.id+".pdf"))
	if err := files.Write(ctx, src, e.source); err != nil {
		return orchestrator.EmbedResult{}, err
	}
	if err := records.Create(ctx, &store.Record{ID: e.id, SourcePath: src, Status: store.StatusPending}); err != nil {
		return orchestrator.EmbedResult{}, err
	}

	orch, err := buildOrchestrator(e.cfg, orchestrator.Deps{
		Storage: files,
		Store:   records,
		Locker:  lock.NewLocal(),
	}, e.observer, e.logger)
	if err != nil {
		return orchestrator.EmbedResult{}, err
	}

	res := orch.Submit(ctx, orchestrator.Request{
		DocumentID:  e.id,
		Overlay:     e.overlay,
		Placement:   p,
		Replacement: e.replacement,
	})
	if !res.Success {
		return res, nil
	}
	data, err := files.Read(ctx, res.ArtifactRef)
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(e.output, data, 0o644); err != nil {
		return res, fmt.Errorf("write output: %w", err)
	}
	return res, nil
}
