package service

import (
	"context"
	"errors"
	"fmt"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"quiz_platform_backend/pkg/monitoring"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SectionResult 一个分区的得分与满分
type SectionResult struct {
	Kind  model.SectionKind `json:"kind"`
	Score int               `json:"score"`
	Total int               `json:"total"`
}

type Aggregate struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Percentage 100 * score / total，保留两位小数（四舍五入），total 为 0 时返回 0
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	p := decimal.NewFromInt(int64(score)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
	f, _ := p.Float64()
	return f
}

// Combine 汇总各分区结果，顺序无关
func Combine(results []SectionResult) Aggregate {
	var agg Aggregate
	for _, r := range results {
		agg.Score += r.Score
		agg.Total += r.Total
	}
	agg.Percentage = Percentage(agg.Score, agg.Total)
	return agg
}

// SectionResults 满分已知（非空）的分区
func SectionResults(a *model.Attempt) []SectionResult {
	var out []SectionResult
	for _, kind := range model.SectionKinds {
		sec := a.Section(kind)
		if sec.Total == nil {
			continue
		}
		out = append(out, SectionResult{Kind: kind, Score: sec.Score, Total: *sec.Total})
	}
	return out
}

// Finalization 一次分区提交需要的全部输入
type Finalization struct {
	Kind     model.SectionKind
	Strategy SectionStrategy
	Points   int
	// Answers 会话本地的作答，与库中已保存的合并，本地优先
	Answers model.Answers
	At      time.Time
}

// ScoreAggregator 把分区成绩合并进答题记录。每次都基于最新读取的记录计算，
// 用版本号做条件写，冲突时重读重试。
type ScoreAggregator struct {
	Attempts AttemptStore
	Retries  int
}

func NewScoreAggregator(attempts AttemptStore, retries int) *ScoreAggregator {
	if retries < 0 {
		retries = 0
	}
	return &ScoreAggregator{Attempts: attempts, Retries: retries}
}

// FinalizeSection 返回写入后的记录；分区此前已提交时原样返回且 already 为 true
func (s *ScoreAggregator) FinalizeSection(ctx context.Context, attemptID string, f Finalization) (attempt *model.Attempt, already bool, err error) {
	for try := 0; try <= s.Retries; try++ {
		attempt, err = s.Attempts.FindByID(ctx, attemptID)
		if err != nil {
			return nil, false, err
		}
		sec := attempt.Section(f.Kind)
		if sec.Submitted {
			return attempt, true, nil
		}

		patch, err := buildFinalPatch(attempt, f)
		if err != nil {
			return nil, false, err
		}
		err = s.Attempts.CompareAndPatch(ctx, attempt.ID, attempt.Version, patch)
		if errors.Is(err, util.ErrWriteConflict) {
			monitoring.MergeConflicts.Inc()
			logger.Log.Info("Attempt changed during finalize, retrying",
				zap.String("attemptId", attemptID), zap.String("kind", string(f.Kind)), zap.Int("try", try))
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if err := patch.Apply(attempt); err != nil {
			return nil, false, err
		}
		attempt.Version++
		return attempt, false, nil
	}
	return nil, false, fmt.Errorf("finalize %s section: %w", f.Kind, util.ErrWriteConflict)
}

func buildFinalPatch(a *model.Attempt, f Finalization) (model.AttemptPatch, error) {
	sec := a.Section(f.Kind)
	stored, err := sec.AnswerMap()
	if err != nil {
		return model.AttemptPatch{}, err
	}
	for idx, v := range f.Answers {
		stored[idx] = v
	}
	snapshot, err := sec.Snapshot()
	if err != nil {
		return model.AttemptPatch{}, err
	}
	score, total := ScoreSection(f.Strategy, snapshot, stored, f.Points)

	results := make([]SectionResult, 0, len(model.SectionKinds))
	for _, r := range SectionResults(a) {
		if r.Kind != f.Kind {
			results = append(results, r)
		}
	}
	results = append(results, SectionResult{Kind: f.Kind, Score: score, Total: total})
	agg := Combine(results)

	var p model.AttemptPatch
	sp := p.Section(f.Kind)
	yes, zero := true, 0
	at := f.At
	sp.Answers = stored
	sp.Submitted = &yes
	sp.Score = &score
	sp.Total = &total
	sp.Warnings = &zero
	sp.SubmittedAt = &at
	p.WarningCount = &zero
	p.HasSubmitted = &yes
	p.Percentage = &agg.Percentage
	p.OverallScore = &agg.Score
	p.OverallTotal = &agg.Total
	return p, nil
}
