package service

import (
	"fmt"
	"math/rand"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
	"strings"
	"unicode/utf8"
)

// Shuffler 与 rand.Shuffle 签名一致，测试里可以换成确定性的实现
type Shuffler func(n int, swap func(i, j int))

var DefaultShuffler Shuffler = rand.Shuffle

const maxShortAnswerLen = 5000

// SectionStrategy 三种题型的差异点：抽题后的快照构造、作答校验、判分
type SectionStrategy interface {
	Kind() model.SectionKind
	Prepare(q model.Question, shuffle Shuffler) model.SnapshotQuestion
	ValidateAnswer(q model.SnapshotQuestion, answer string) error
	// Grade 返回是否答对；scored 为 false 表示该题型不自动判分
	Grade(q model.SnapshotQuestion, answer string) (correct bool, scored bool)
}

func StrategyFor(kind model.SectionKind) (SectionStrategy, error) {
	switch kind {
	case model.SectionMCQ:
		return mcqStrategy{}, nil
	case model.SectionTrueFalse:
		return trueFalseStrategy{}, nil
	case model.SectionShort:
		return shortStrategy{}, nil
	}
	return nil, fmt.Errorf("%w: %q", util.ErrInvalidKind, kind)
}

type mcqStrategy struct{}

func (mcqStrategy) Kind() model.SectionKind { return model.SectionMCQ }

// Prepare 每道题的选项顺序独立打乱
func (mcqStrategy) Prepare(q model.Question, shuffle Shuffler) model.SnapshotQuestion {
	opts := append([]model.Option(nil), q.Options.Data()...)
	shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	return model.SnapshotQuestion{QuestionID: q.ID, Text: q.Text, Options: opts}
}

func (mcqStrategy) ValidateAnswer(q model.SnapshotQuestion, answer string) error {
	for _, o := range q.Options {
		if o.Text == answer {
			return nil
		}
	}
	return util.ErrInvalidAnswer
}

// Grade 按选项文本比对，与展示顺序无关
func (mcqStrategy) Grade(q model.SnapshotQuestion, answer string) (bool, bool) {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.Text == answer, true
		}
	}
	return false, true
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Kind() model.SectionKind { return model.SectionTrueFalse }

// Prepare 附带一组打乱顺序的 True/False 展示选项，逻辑答案不受影响
func (trueFalseStrategy) Prepare(q model.Question, shuffle Shuffler) model.SnapshotQuestion {
	answer := q.Answer != nil && *q.Answer
	opts := []model.Option{
		{Text: "true", IsCorrect: answer},
		{Text: "false", IsCorrect: !answer},
	}
	shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	return model.SnapshotQuestion{QuestionID: q.ID, Text: q.Text, Options: opts, Answer: &answer}
}

func (trueFalseStrategy) ValidateAnswer(q model.SnapshotQuestion, answer string) error {
	if _, ok := util.ParseBoolLoose(answer); !ok {
		return util.ErrInvalidAnswer
	}
	return nil
}

func (trueFalseStrategy) Grade(q model.SnapshotQuestion, answer string) (bool, bool) {
	v, ok := util.ParseBoolLoose(answer)
	if !ok || q.Answer == nil {
		return false, true
	}
	return v == *q.Answer, true
}

type shortStrategy struct{}

func (shortStrategy) Kind() model.SectionKind { return model.SectionShort }

func (shortStrategy) Prepare(q model.Question, shuffle Shuffler) model.SnapshotQuestion {
	return model.SnapshotQuestion{QuestionID: q.ID, Text: q.Text, ReferenceAnswer: q.ReferenceAnswer}
}

func (shortStrategy) ValidateAnswer(q model.SnapshotQuestion, answer string) error {
	if utf8.RuneCountInString(answer) > maxShortAnswerLen {
		return util.ErrInvalidAnswer
	}
	return nil
}

// Grade 简答题人工批改
func (shortStrategy) Grade(q model.SnapshotQuestion, answer string) (bool, bool) {
	return false, false
}

// SelectPool 打乱整个题库后取前 count 道，count <= 0 或超过题库大小时取全部
func SelectPool(questions []model.Question, count int, strategy SectionStrategy, shuffle Shuffler) ([]model.SnapshotQuestion, error) {
	if len(questions) == 0 {
		return nil, util.ErrNoQuestions
	}
	if shuffle == nil {
		shuffle = DefaultShuffler
	}
	pool := append([]model.Question(nil), questions...)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count > 0 && count < len(pool) {
		pool = pool[:count]
	}

	out := make([]model.SnapshotQuestion, 0, len(pool))
	for _, q := range pool {
		out = append(out, strategy.Prepare(q, shuffle))
	}
	return out, nil
}

// InitialTotal 分区开始时就能确定的满分，简答题未知
func InitialTotal(strategy SectionStrategy, n, points int) *int {
	if !strategy.Kind().AutoScored() {
		return nil
	}
	total := n * points
	return &total
}

// ScoreSection 按快照判分。简答题得分和满分都记 0，不参与百分比
func ScoreSection(strategy SectionStrategy, snapshot []model.SnapshotQuestion, answers model.Answers, points int) (score, total int) {
	if !strategy.Kind().AutoScored() {
		return 0, 0
	}
	for i, q := range snapshot {
		answer, ok := answers[i]
		if !ok || strings.TrimSpace(answer) == "" {
			continue
		}
		if correct, scored := strategy.Grade(q, answer); scored && correct {
			score += points
		}
	}
	return score, len(snapshot) * points
}
