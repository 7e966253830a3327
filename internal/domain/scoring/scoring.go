// Package scoring turns full game result objects into the numeric score
// stored alongside them and classifies results into hunter rank tiers.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hunterhub/hunter-ranking/internal/domain/model"
)

// Reflex weighted scoring defaults.
const (
	defaultFailurePenaltyMS = 1000
	defaultMinSuccessCount  = 3
	msPerSecond             = 1000
)

// Option applies a configuration option to the ResultScorer.
type Option func(*ResultScorer)

// WithFailurePenalty sets the milliseconds charged for a failed reflex attempt.
func WithFailurePenalty(ms int64) Option {
	return func(s *ResultScorer) {
		if ms > 0 {
			s.failurePenalty = ms
		}
	}
}

// WithMinSuccessCount sets how many successful reflex attempts make a result ranking eligible.
func WithMinSuccessCount(n int) Option {
	return func(s *ResultScorer) {
		if n > 0 {
			s.minSuccessCount = n
		}
	}
}

// Input is a serialized result object of one game type.
type Input struct {
	GameType string
	GameData json.RawMessage
}

// Result is the derived score of a result object.
type Result struct {
	Score int64
	// Eligible is false when a result should not enter rankings, e.g. a
	// reflex round with too few successful attempts.
	Eligible bool
	Rank     HunterRank
}

// Scorer derives scores from result objects.
type Scorer interface {
	Score(ctx context.Context, in Input) (Result, error)
}

// ReflexAttempt is one round of the reflex test.
type ReflexAttempt struct {
	Time         float64 `json:"time"`
	Round        int     `json:"round"`
	Success      bool    `json:"success"`
	ReactionTime float64 `json:"reactionTime,omitempty"`
}

// ReflexResult is the result object of the reflex test.
type ReflexResult struct {
	Date          string          `json:"date"`
	AverageTime   float64         `json:"averageTime"`
	BestTime      float64         `json:"bestTime"`
	SuccessRate   float64         `json:"successRate"`
	TestResults   []ReflexAttempt `json:"testResults"`
	SuccessCount  int             `json:"successCount"`
	FailureCount  int             `json:"failureCount"`
	WeightedScore int64           `json:"weightedScore"`
}

// TargetHit is one target of the tracking game.
type TargetHit struct {
	TargetNumber int     `json:"targetNumber"`
	ReactionTime float64 `json:"reactionTime"`
	Timestamp    int64   `json:"timestamp"`
}

// TargetResult is the result object of the target tracking game. Times are seconds.
type TargetResult struct {
	Date                string      `json:"date"`
	TotalTime           float64     `json:"totalTime"`
	AverageReactionTime float64     `json:"averageReactionTime"`
	Accuracy            float64     `json:"accuracy"`
	TargetResults       []TargetHit `json:"targetResults"`
}

// SequenceResult is the result object of the number sequence game. Times are seconds.
type SequenceResult struct {
	Date                 string  `json:"date"`
	CompletionTime       float64 `json:"completionTime"`
	AverageClickInterval float64 `json:"averageClickInterval"`
	SuccessClickRate     float64 `json:"successClickRate"`
	Rank                 int     `json:"rank"`
	RankTitle            string  `json:"rankTitle"`
	Completed            bool    `json:"completed"`
}

// Weighted summarises a set of reflex attempts.
type Weighted struct {
	SuccessCount       int
	FailureCount       int
	AverageSuccessTime int64
	WeightedScore      int64
}

// ResultScorer implements Scorer for the built-in game types.
type ResultScorer struct {
	failurePenalty  int64
	minSuccessCount int
}

// NewResultScorer creates a scorer with configuration options.
func NewResultScorer(opts ...Option) *ResultScorer {
	s := &ResultScorer{
		failurePenalty:  defaultFailurePenaltyMS,
		minSuccessCount: defaultMinSuccessCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score derives the stored score of a result object. Reflex uses the
// weighted score in ms, target the total time in ms and sequence the
// completion time in ms. Unknown game types score zero and stay eligible.
func (s *ResultScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("scoring cancelled: %w", err)
	}

	switch in.GameType {
	case model.GameReflex:
		var r ReflexResult
		if err := decode(in, &r); err != nil {
			return Result{}, err
		}
		w := s.Weigh(r.TestResults)
		if len(r.TestResults) == 0 && r.WeightedScore > 0 {
			w.WeightedScore = r.WeightedScore
			w.SuccessCount = r.SuccessCount
			w.AverageSuccessTime = int64(math.Round(r.AverageTime))
		}
		return Result{
			Score:    w.WeightedScore,
			Eligible: w.SuccessCount >= s.minSuccessCount,
			Rank:     ReflexRank(float64(w.AverageSuccessTime)),
		}, nil

	case model.GameTarget:
		var r TargetResult
		if err := decode(in, &r); err != nil {
			return Result{}, err
		}
		return Result{
			Score:    secondsToMS(r.TotalTime),
			Eligible: r.TotalTime > 0,
			Rank:     TargetRank(r.AverageReactionTime),
		}, nil

	case model.GameSequence:
		var r SequenceResult
		if err := decode(in, &r); err != nil {
			return Result{}, err
		}
		return Result{
			Score:    secondsToMS(r.CompletionTime),
			Eligible: r.Completed,
			Rank:     SequenceRank(r.CompletionTime),
		}, nil
	}

	if len(in.GameData) > 0 && !json.Valid(in.GameData) {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidResult, in.GameType)
	}
	return Result{Eligible: true}, nil
}

// Weigh computes the weighted reflex score:
// (avgSuccess*successes + penalty*failures) / attempts, rounded.
// With no attempts the score is the failure penalty.
func (s *ResultScorer) Weigh(attempts []ReflexAttempt) Weighted {
	var w Weighted
	var sum float64
	for _, a := range attempts {
		switch {
		case a.Success && a.Time > 0:
			w.SuccessCount++
			sum += a.Time
		case !a.Success:
			w.FailureCount++
		}
	}
	if w.SuccessCount > 0 {
		w.AverageSuccessTime = int64(math.Round(sum / float64(w.SuccessCount)))
	}
	if len(attempts) == 0 {
		w.WeightedScore = s.failurePenalty
		return w
	}
	total := float64(w.AverageSuccessTime)*float64(w.SuccessCount) + float64(s.failurePenalty)*float64(w.FailureCount)
	w.WeightedScore = int64(math.Round(total / float64(len(attempts))))
	return w
}

func decode(in Input, v any) error {
	if err := json.Unmarshal(in.GameData, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidResult, in.GameType, err)
	}
	return nil
}

func secondsToMS(sec float64) int64 {
	return int64(math.Round(sec * msPerSecond))
}
