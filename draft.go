package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"landing_copy_studio/document"
	"landing_copy_studio/generator"
	"landing_copy_studio/publisher"
	"landing_copy_studio/workflow"
)

// draftFile is the YAML brief consumed by the draft command.
type draftFile struct {
	Title    string            `yaml:"title"`
	Brief    generator.Brief   `yaml:"brief"`
	Landing  generator.Landing `yaml:"landing"`
	Document string            `yaml:"document"`
	Sections []draftSection    `yaml:"sections"`
}

type draftSection struct {
	Name string                `yaml:"name"`
	Kind generator.SectionKind `yaml:"kind"`
	// Pick overrides the command's --pick for this section.
	Pick string `yaml:"pick"`
}

func loadDraftFile(path string) (draftFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return draftFile{}, err
	}
	var df draftFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return draftFile{}, fmt.Errorf("parse brief %s: %w", path, err)
	}
	if len(df.Sections) == 0 {
		return draftFile{}, fmt.Errorf("brief %s lists no sections", path)
	}
	if df.Document != "" && !filepath.IsAbs(df.Document) {
		df.Document = filepath.Join(filepath.Dir(path), df.Document)
	}
	return df, nil
}

type draftOptions struct {
	Pick        string
	CallTimeout time.Duration
}

// runDraft walks the workflow from brief to finalized page without a UI.
// Failures stop the run; nothing is retried automatically.
func runDraft(ctx context.Context, gen workflow.CopyGenerator, extractor document.Extractor, df draftFile, opts draftOptions, logger *zap.Logger) ([]workflow.FinalSection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctrl := workflow.NewController(gen, logger)

	if err := ctrl.SetLanding(df.Landing); err != nil {
		return nil, err
	}
	if df.Document != "" {
		f, err := os.Open(df.Document)
		if err != nil {
			return nil, err
		}
		res, err := extractor.Extract(ctx, filepath.Base(df.Document), f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", df.Document, err)
		}
		if err := ctrl.SetDocument(workflow.Document{Filename: res.Filename, SizeBytes: res.SizeBytes, PageCount: res.PageCount, Text: res.Text}); err != nil {
			return nil, err
		}
	}
	if err := ctrl.ConfirmBrief(df.Brief); err != nil {
		return nil, err
	}

	picks := make(map[string]int, len(df.Sections))
	for _, s := range df.Sections {
		label := s.Pick
		if label == "" {
			label = opts.Pick
		}
		idx, err := generator.ParseLabel(label)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
		added, err := ctrl.AddSection(s.Name, s.Kind)
		if err != nil {
			return nil, fmt.Errorf("section %q: %w", s.Name, err)
		}
		picks[added.ID] = idx
	}

	call, err := ctrl.StartGeneration()
	for call != nil && err == nil {
		if err = runCall(ctx, ctrl, call, opts.CallTimeout); err != nil {
			break
		}
		logger.Info("section drafted", zap.String("section_id", call.SectionID), zap.String("pick", generator.Labels[picks[call.SectionID]]))
		call, err = ctrl.Approve(picks[call.SectionID])
	}
	if err != nil {
		if msg := ctrl.Snapshot().Error; msg != "" {
			return nil, fmt.Errorf("%s: %w", msg, err)
		}
		return nil, err
	}
	return ctrl.FinalSections()
}

func runCall(ctx context.Context, ctrl *workflow.Controller, call *workflow.Call, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return ctrl.Run(ctx, call)
}

func draftCommand(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	format, err := publisher.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	df, err := loadDraftFile(c.String("brief"))
	if err != nil {
		return err
	}
	agent, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}

	opts := draftOptions{Pick: c.String("pick"), CallTimeout: cfg.GenerationTimeout.Std()}
	sections, err := runDraft(c.Context, agent, document.NewFileExtractor(cfg.MaxUploadBytes(), logger), df, opts, logger)
	if err != nil {
		var verr *workflow.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("brief is invalid: %s", generator.JoinFieldErrors(verr.Fields))
		}
		return err
	}

	page := publisher.Page{Title: df.Title, Sections: sections}
	if out := c.String("out"); out != "" {
		path, err := publisher.WriteFile(out, page, format)
		if err != nil {
			return err
		}
		logger.Info("landing page written", zap.String("path", path), zap.Int("sections", len(sections)))
		return nil
	}
	rendered, err := publisher.Render(page, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, rendered)
	return nil
}
