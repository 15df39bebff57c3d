package model

import "strings"

// SectionKind 题型分区
type SectionKind string

const (
	SectionMCQ       SectionKind = "mcq"
	SectionTrueFalse SectionKind = "truefalse"
	SectionShort     SectionKind = "short"
)

// SectionKinds 固定的分区顺序，启动页和汇总都按这个顺序输出
var SectionKinds = []SectionKind{SectionMCQ, SectionTrueFalse, SectionShort}

func ParseSectionKind(s string) (SectionKind, bool) {
	switch SectionKind(strings.ToLower(strings.TrimSpace(s))) {
	case SectionMCQ:
		return SectionMCQ, true
	case SectionTrueFalse:
		return SectionTrueFalse, true
	case SectionShort:
		return SectionShort, true
	}
	return "", false
}

func (k SectionKind) Valid() bool {
	_, ok := ParseSectionKind(string(k))
	return ok
}

// ColumnPrefix attempts 表中该分区字段的列名前缀
func (k SectionKind) ColumnPrefix() string {
	switch k {
	case SectionMCQ:
		return "mcqs_"
	case SectionTrueFalse:
		return "true_false_"
	case SectionShort:
		return "short_"
	}
	return ""
}

// AutoScored 简答题留给人工批改，不自动计分
func (k SectionKind) AutoScored() bool {
	return k == SectionMCQ || k == SectionTrueFalse
}

// Route 前端答题页路由
func (k SectionKind) Route(quizID string) string {
	switch k {
	case SectionMCQ:
		return "/mcqs-test/" + quizID
	case SectionTrueFalse:
		return "/true-false-test/" + quizID
	case SectionShort:
		return "/short-questions-test/" + quizID
	}
	return ""
}

// LauncherRoute 分区选择页路由，提交或重定向后都回到这里
func LauncherRoute(quizID string) string {
	return "/quiz-sections/" + quizID
}
