package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"categoria/internal/core"
)

// Reason codes for structured empty results. Data insufficiency is not an
// error: callers receive one of these instead of predictions.
const (
	ReasonEmptyTokens      = "empty_tokens"
	ReasonNoCategories     = "no_categories"
	ReasonNoModel          = "no_model"
	ReasonNoTrainingData   = "no_training_data"
	ReasonInsufficientData = "insufficient_data"
	ReasonUnknownTokens    = "unknown_tokens"
)

type (
	// Prediction is one ranked category suggestion.
	Prediction struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
		Support    int     `json:"support"`
	}

	// Meta describes the model state a prediction was computed against.
	Meta struct {
		TotalDocs   int `json:"total_docs"`
		TokensUsed  int `json:"tokens_used,omitempty"`
		TokensKnown int `json:"tokens_known,omitempty"`
		MinRequired int `json:"min_required,omitempty"`
	}

	// Result is the full prediction response: ranked categories, or an
	// empty list with a machine-readable reason.
	Result struct {
		Predictions []Prediction `json:"predictions"`
		Reason      string       `json:"reason,omitempty"`
		Meta        *Meta        `json:"meta,omitempty"`
	}

	// Options tune the scorer. The zero value is not usable; start from
	// DefaultOptions.
	Options struct {
		MinDocs        int
		PriorSmoothing float64
		TokenSmoothing float64
		EnableTFIDF    bool
		MinConfidence  float64
		MaxPredictions int
	}
)

// DefaultOptions returns the production scoring parameters: Laplace
// smoothing of 1 on both prior and likelihood, TF-IDF weighting on, a
// cold-start threshold of 5 training records, a 0.01 confidence floor and
// at most 3 suggestions.
func DefaultOptions() Options {
	return Options{
		MinDocs:        5,
		PriorSmoothing: 1,
		TokenSmoothing: 1,
		EnableTFIDF:    true,
		MinConfidence:  0.01,
		MaxPredictions: 3,
	}
}

// Engine answers category predictions from the current model snapshot. It is
// read-only and safe to call concurrently with any number of
// reconciliations; a momentarily stale snapshot is acceptable.
type Engine struct {
	store ModelStore
	opts  Options
}

func NewEngine(store ModelStore, opts Options) *Engine {
	return &Engine{store: store, opts: opts}
}

// Predict tokenizes the title with the exact training-path pipeline and
// scores every candidate category. It never fails for lack of data; only
// storage errors are returned.
func (e *Engine) Predict(ctx context.Context, userID, title string, candidates []string) (Result, error) {
	tokens := core.Tokenize(title)
	if len(tokens) == 0 {
		return Result{Reason: ReasonEmptyTokens}, nil
	}

	categories := dedupeCategories(candidates)
	if len(categories) == 0 {
		return Result{Reason: ReasonNoCategories}, nil
	}

	agg, err := e.store.GetAggregates(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("get model aggregates: %w", err)
	}
	if agg == nil {
		return Result{Reason: ReasonNoModel}, nil
	}
	if agg.TotalDocs <= 0 {
		return Result{Reason: ReasonNoTrainingData}, nil
	}
	if agg.TotalDocs < e.opts.MinDocs {
		return Result{
			Reason: ReasonInsufficientData,
			Meta:   &Meta{TotalDocs: agg.TotalDocs, MinRequired: e.opts.MinDocs},
		}, nil
	}

	stats, err := e.store.GetTokenStats(ctx, userID, tokens)
	if err != nil {
		return Result{}, fmt.Errorf("get token stats: %w", err)
	}
	if len(stats) == 0 {
		return Result{Reason: ReasonUnknownTokens}, nil
	}

	predictions := scoreCategories(tokens, categories, agg, stats, e.opts)
	return Result{
		Predictions: predictions,
		Meta: &Meta{
			TotalDocs:   agg.TotalDocs,
			TokensUsed:  len(tokens),
			TokensKnown: len(stats),
		},
	}, nil
}

// scoreCategories runs the smoothed naive Bayes scorer over every candidate
// and converts the log scores into a probability distribution.
func scoreCategories(tokens, categories []string, agg *core.Aggregates, stats map[string]core.TokenStats, opts Options) []Prediction {
	titleCounts, titleTotal := core.BuildTokenCounts(tokens)
	totalDocs := float64(agg.TotalDocs)

	// Global vocabulary size gives consistent Laplace smoothing across
	// requests; fall back to the known query tokens for models persisted
	// before vocabulary tracking existed.
	vocabularySize := float64(agg.VocabularySize)
	if vocabularySize <= 0 {
		vocabularySize = float64(len(stats))
		if vocabularySize < 1 {
			vocabularySize = 1
		}
	}

	// IDF = ln(totalDocs / (docFreq+1)) + 1, with docFreq clamped into
	// [1, totalDocs] so stale counters cannot produce skewed weights.
	idf := map[string]float64{}
	if opts.EnableTFIDF {
		for token, info := range stats {
			docFreq := float64(info.DocFreq)
			if docFreq < 1 {
				docFreq = 1
			}
			if docFreq > totalDocs {
				docFreq = totalDocs
			}
			idf[token] = math.Log(totalDocs/(docFreq+1)) + 1
		}
	}

	type scored struct {
		category string
		score    float64
		support  int
	}
	scores := make([]scored, 0, len(categories))

	for _, name := range categories {
		key := core.CategoryKey(name)
		docCount := float64(agg.CategoryDocCounts[key])
		logPrior := math.Log(docCount+opts.PriorSmoothing) -
			math.Log(totalDocs+opts.PriorSmoothing*float64(len(categories)))

		categoryTokenTotal := float64(agg.CategoryTokenTotals[key])
		logLikelihood := 0.0

		for token, count := range titleCounts {
			tokenCount := 0.0
			if info, ok := stats[token]; ok {
				tokenCount = float64(info.Counts[key])
			}

			weight := float64(count)
			if opts.EnableTFIDF {
				tf := float64(count) / float64(titleTotal)
				tokenIDF, ok := idf[token]
				if !ok {
					tokenIDF = 1
				}
				weight = tf * tokenIDF
			}

			numerator := tokenCount + opts.TokenSmoothing
			denominator := categoryTokenTotal + opts.TokenSmoothing*vocabularySize
			logLikelihood += weight * (math.Log(numerator) - math.Log(denominator))
		}

		scores = append(scores, scored{
			category: name,
			score:    logPrior + logLikelihood,
			support:  int(docCount),
		})
	}

	// Numerically stable softmax: shift by the max before exponentiating.
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s.score > maxScore {
			maxScore = s.score
		}
	}
	sumExp := 0.0
	exps := make([]float64, len(scores))
	for i, s := range scores {
		exps[i] = math.Exp(s.score - maxScore)
		sumExp += exps[i]
	}
	if sumExp == 0 {
		sumExp = 1
	}

	predictions := make([]Prediction, 0, len(scores))
	for i, s := range scores {
		confidence := exps[i] / sumExp
		if confidence <= opts.MinConfidence {
			continue
		}
		predictions = append(predictions, Prediction{
			Category:   s.category,
			Confidence: confidence,
			Support:    s.support,
		})
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].Confidence > predictions[j].Confidence
	})
	if len(predictions) > opts.MaxPredictions {
		predictions = predictions[:opts.MaxPredictions]
	}
	return predictions
}

func dedupeCategories(candidates []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(candidates))
	for _, name := range candidates {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
