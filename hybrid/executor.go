package hybrid

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/justSteve/coding-agent-session-search/model"
)

// LexicalSearchFunc runs the lexical engine's side of a hybrid search.
type LexicalSearchFunc func(ctx context.Context, limit int) ([]model.Candidate, error)

// SemanticSearchFunc runs the vector engine's side of a hybrid search.
type SemanticSearchFunc func(ctx context.Context, limit int) ([]model.Candidate, error)

// Run launches the lexical and semantic searches concurrently (spec §5
// "the hybrid fuser launches its two engines concurrently and joins
// them"), fetching candidateMult*limit from each, then fuses the results.
// If either side errors, Run returns that error and no partial results.
func (f *Fuser) Run(ctx context.Context, limit, candidateMult int, lex LexicalSearchFunc, sem SemanticSearchFunc) ([]model.Candidate, error) {
	if candidateMult <= 0 {
		candidateMult = DefaultCandidateMult
	}
	depth := candidateMult * limit

	g, gctx := errgroup.WithContext(ctx)

	var lexHits, semHits []model.Candidate
	g.Go(func() error {
		hits, err := lex(gctx, depth)
		if err != nil {
			return err
		}
		lexHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := sem(gctx, depth)
		if err != nil {
			return err
		}
		semHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return f.Fuse(lexHits, semHits, limit), nil
}
