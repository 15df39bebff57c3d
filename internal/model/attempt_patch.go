package model

import (
	"time"

	"gorm.io/datatypes"
)

// SectionPatch 一次写入中对某个分区修改的字段，nil 表示不动
type SectionPatch struct {
	Answers     Answers
	CurrentIdx  *int
	Submitted   *bool
	Score       *int
	Total       *int
	Warnings    *int
	SubmittedAt *time.Time
}

// AttemptPatch 只包含本次操作改动的字段，写库时只更新这些列
type AttemptPatch struct {
	Sections     map[SectionKind]*SectionPatch
	WarningCount *int
	HasSubmitted *bool
	Percentage   *float64
	OverallScore *int
	OverallTotal *int
}

// Section 取出（必要时创建）某个分区的补丁
func (p *AttemptPatch) Section(kind SectionKind) *SectionPatch {
	if p.Sections == nil {
		p.Sections = make(map[SectionKind]*SectionPatch)
	}
	sp, ok := p.Sections[kind]
	if !ok {
		sp = &SectionPatch{}
		p.Sections[kind] = sp
	}
	return sp
}

// GuardedSections 没有显式修改 submitted 的分区，写入时要求它仍未提交
func (p AttemptPatch) GuardedSections() []SectionKind {
	var kinds []SectionKind
	for _, k := range SectionKinds {
		if sp, ok := p.Sections[k]; ok && sp.Submitted == nil {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Columns 转成 gorm Updates 使用的列名 -> 值
func (p AttemptPatch) Columns() (map[string]interface{}, error) {
	cols := make(map[string]interface{})
	for kind, sp := range p.Sections {
		prefix := kind.ColumnPrefix()
		if sp.Answers != nil {
			enc, err := encodeAnswers(sp.Answers)
			if err != nil {
				return nil, err
			}
			cols[prefix+"answers"] = enc
		}
		if sp.CurrentIdx != nil {
			cols[prefix+"current_idx"] = *sp.CurrentIdx
		}
		if sp.Submitted != nil {
			cols[prefix+"submitted"] = *sp.Submitted
		}
		if sp.Score != nil {
			cols[prefix+"score"] = *sp.Score
		}
		if sp.Total != nil {
			cols[prefix+"total"] = *sp.Total
		}
		if sp.Warnings != nil {
			cols[prefix+"warnings"] = *sp.Warnings
		}
		if sp.SubmittedAt != nil {
			cols[prefix+"submitted_at"] = *sp.SubmittedAt
		}
	}
	if p.WarningCount != nil {
		cols["warning_count"] = *p.WarningCount
	}
	if p.HasSubmitted != nil {
		cols["has_submitted"] = *p.HasSubmitted
	}
	if p.Percentage != nil {
		cols["percentage"] = *p.Percentage
	}
	if p.OverallScore != nil {
		cols["overall_score"] = *p.OverallScore
	}
	if p.OverallTotal != nil {
		cols["overall_total"] = *p.OverallTotal
	}
	return cols, nil
}

// Apply 把补丁应用到内存中的记录上，与 Columns 写库的效果一致
func (p AttemptPatch) Apply(a *Attempt) error {
	for kind, sp := range p.Sections {
		sec := a.Section(kind)
		if sec == nil {
			continue
		}
		if sp.Answers != nil {
			enc, err := encodeAnswers(sp.Answers)
			if err != nil {
				return err
			}
			sec.Answers = datatypes.JSON(enc)
		}
		if sp.CurrentIdx != nil {
			sec.CurrentIdx = *sp.CurrentIdx
		}
		if sp.Submitted != nil {
			sec.Submitted = *sp.Submitted
		}
		if sp.Score != nil {
			sec.Score = *sp.Score
		}
		if sp.Total != nil {
			v := *sp.Total
			sec.Total = &v
		}
		if sp.Warnings != nil {
			sec.Warnings = *sp.Warnings
		}
		if sp.SubmittedAt != nil {
			t := *sp.SubmittedAt
			sec.SubmittedAt = &t
		}
	}
	if p.WarningCount != nil {
		a.WarningCount = *p.WarningCount
	}
	if p.HasSubmitted != nil {
		a.HasSubmitted = *p.HasSubmitted
	}
	if p.Percentage != nil {
		a.Percentage = *p.Percentage
	}
	if p.OverallScore != nil {
		a.OverallScore = *p.OverallScore
	}
	if p.OverallTotal != nil {
		a.OverallTotal = *p.OverallTotal
	}
	return nil
}
