package generator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Agent drafts and refines section variations through an LLM.
type Agent struct {
	llm    LLMClient
	logger *zap.Logger
}

func NewAgent(llm LLMClient, logger *zap.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{llm: llm, logger: logger.With(zap.String("module", "generator"))}, nil
}

// GenerateVariations drafts three variations for sectionName.
func (a *Agent) GenerateVariations(ctx context.Context, req Request, sectionName string) ([]Variation, error) {
	return a.complete(ctx, "generate", sectionName, BuildGenerationPrompt(req, sectionName))
}

// RefineVariation redrafts current according to feedback and returns three variations.
func (a *Agent) RefineVariation(ctx context.Context, req Request, sectionName, feedback string, current Variation) ([]Variation, error) {
	return a.complete(ctx, "refine", sectionName, BuildRevisionPrompt(req, sectionName, feedback, current))
}

func (a *Agent) complete(ctx context.Context, op, sectionName string, prompt Prompt) ([]Variation, error) {
	start := time.Now()
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("llm call failed",
			zap.String("op", op),
			zap.String("section", sectionName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	vs, err := PostProcess(raw)
	if err != nil {
		a.logger.Error("llm response rejected",
			zap.String("op", op),
			zap.String("section", sectionName),
			zap.String("raw_response", raw),
			zap.Error(err))
		return nil, err
	}
	a.logger.Info("variations ready",
		zap.String("op", op),
		zap.String("section", sectionName),
		zap.Duration("elapsed", time.Since(start)))
	return vs, nil
}
