package model

import (
	"github.com/liezira/simutbk-backend/internal/engine"
)

// Subtest is one section of the UTBK battery. The canonical battery ships in
// the migrations and is ordered by OrderNum.
type Subtest struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	QuestionCount     int    `json:"question_count"`
	TimeBudgetMinutes int    `json:"time_budget_minutes"`
	OrderNum          int    `json:"order_num"`
}

// SectionSpec converts the row into the engine's section descriptor.
func (s Subtest) SectionSpec() engine.SectionSpec {
	return engine.SectionSpec{
		ID:                s.ID,
		DisplayName:       s.DisplayName,
		QuestionCount:     s.QuestionCount,
		TimeBudgetMinutes: s.TimeBudgetMinutes,
	}
}
