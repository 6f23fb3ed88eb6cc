package simulation

import (
	"context"
	"time"

	"github.com/tigerroll/fraudflow/pkg/fraud/core/domain/model"
	"github.com/tigerroll/fraudflow/pkg/fraud/support/util/logger"
)

// Scorer sends one transaction through the inference path.
type Scorer interface {
	Score(ctx context.Context, tx model.Transaction) error
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, tx model.Transaction) error

func (f ScorerFunc) Score(ctx context.Context, tx model.Transaction) error {
	return f(ctx, tx)
}

// FunctionInvoker invokes a remote function.
type FunctionInvoker interface {
	Invoke(ctx context.Context, functionName string, payload interface{}, out interface{}) error
}

// RemoteScorer scores through a deployed inference function.
func RemoteScorer(functions FunctionInvoker, functionName string) Scorer {
	return ScorerFunc(func(ctx context.Context, tx model.Transaction) error {
		var out map[string]interface{}
		return functions.Invoke(ctx, functionName, tx, &out)
	})
}

// GenerateResult counts what one generator sent.
type GenerateResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Generator sends sampled transactions until its context ends.
type Generator struct {
	sampler *Sampler
	scorer  Scorer
}

// NewGenerator creates a Generator.
func NewGenerator(sampler *Sampler, scorer Scorer) *Generator {
	return &Generator{sampler: sampler, scorer: scorer}
}

// Generate loops until ctx is done and then returns its error, so a bounded
// generator always ends with the deadline. Scoring failures are logged and the
// loop continues.
func (g *Generator) Generate(ctx context.Context, rc model.RunContext) (interface{}, error) {
	var in BranchInput
	if err := rc.Decode(model.ContextKeyInput, &in); err != nil {
		return nil, err
	}
	interval := time.Duration(in.Interval) * time.Millisecond

	var res GenerateResult
	for ctx.Err() == nil {
		tx := g.sampler.Next()
		if err := g.scorer.Score(ctx, tx); err != nil {
			if ctx.Err() != nil {
				break
			}
			res.Failed++
			logger.Warnf("Simulated transaction %s failed: %v", tx.ID, err)
		} else {
			res.Sent++
		}

		select {
		case <-ctx.Done():
		case <-time.After(interval):
		}
	}
	// The runner drops the output of a failed branch, so the counts are only
	// visible here.
	logger.Infof("Generator stopped (%v): sent %d, failed %d.", ctx.Err(), res.Sent, res.Failed)
	return &res, ctx.Err()
}
