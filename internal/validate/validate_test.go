package validate

import (
	"strings"
	"testing"

	"github.com/joedanields/Automated-CO-PO/internal/model"
)

func sheetWith(kind model.InputKind, mutate func(*model.Metadata)) *model.EvaluationSheet {
	meta := model.Metadata{
		CourseCode:   "C211",
		CourseName:   "COMPUTER ARCHITECTURE",
		Faculty:      "ANANTHI M",
		AcademicYear: "2020-2021 (EVEN)",
		Department:   "B.TECH.IT (2ND YEAR)",
		Regulation:   "R2017 - AUC",
	}
	if mutate != nil {
		mutate(&meta)
	}
	return &model.EvaluationSheet{Kind: kind, Metadata: meta}
}

func TestValidateConsistent(t *testing.T) {
	sheets := []*model.EvaluationSheet{
		sheetWith(model.KindIA1, nil),
		sheetWith(model.KindIA2, nil),
		sheetWith(model.KindModel, nil),
	}
	report := Validate(sheets, "R17")
	if !report.IsValid() {
		t.Fatalf("expected valid report, got %v", report.Messages())
	}
}

func TestValidateIgnoresCaseAndSpacing(t *testing.T) {
	sheets := []*model.EvaluationSheet{
		sheetWith(model.KindIA1, nil),
		sheetWith(model.KindIA2, func(m *model.Metadata) {
			m.Faculty = "  ananthi   m "
		}),
	}
	if report := Validate(sheets, "R17"); !report.IsValid() {
		t.Fatalf("casing/whitespace must not count as a mismatch: %v", report.Messages())
	}
}

func TestValidateFieldMismatch(t *testing.T) {
	sheets := []*model.EvaluationSheet{
		sheetWith(model.KindIA1, nil),
		sheetWith(model.KindIA2, func(m *model.Metadata) { m.CourseCode = "C212" }),
		sheetWith(model.KindModel, nil),
	}
	report := Validate(sheets, "R17")
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %+v", report.Mismatches)
	}

	mm := report.Mismatches[0]
	if mm.Field != "course_code" {
		t.Errorf("field = %q", mm.Field)
	}
	// The report carries every sheet's value, not just the odd one out.
	if len(mm.Values) != 3 {
		t.Fatalf("values = %+v", mm.Values)
	}
	seen := map[string]bool{}
	for _, v := range mm.Values {
		seen[v.Value] = true
	}
	if !seen["C211"] || !seen["C212"] {
		t.Errorf("values should include both C211 and C212: %+v", mm.Values)
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	// Two independent mismatches must both be reported in one pass.
	sheets := []*model.EvaluationSheet{
		sheetWith(model.KindIA1, nil),
		sheetWith(model.KindIA2, func(m *model.Metadata) {
			m.CourseCode = "C212"
			m.Faculty = "SOMEONE ELSE"
		}),
	}
	report := Validate(sheets, "R17")
	if len(report.Mismatches) != 2 {
		t.Fatalf("expected 2 mismatches, got %+v", report.Mismatches)
	}
}

func TestValidateRegulationAgainstRequest(t *testing.T) {
	sheets := []*model.EvaluationSheet{sheetWith(model.KindIA1, nil)}

	// "R2017 - AUC" normalizes to R17 and matches.
	if report := Validate(sheets, "R17"); !report.IsValid() {
		t.Fatalf("expected valid, got %v", report.Messages())
	}

	report := Validate(sheets, "R21")
	if len(report.Mismatches) != 1 || report.Mismatches[0].Field != "regulation" {
		t.Fatalf("expected regulation mismatch, got %+v", report.Mismatches)
	}
	if report.Mismatches[0].Values[0].Source != "request" {
		t.Errorf("first value should carry the requested regulation: %+v", report.Mismatches[0].Values)
	}
}

func TestValidateMessagesNameField(t *testing.T) {
	sheets := []*model.EvaluationSheet{
		sheetWith(model.KindIA1, nil),
		sheetWith(model.KindIA2, func(m *model.Metadata) { m.CourseCode = "C212" }),
	}
	msgs := Validate(sheets, "R17").Messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0], "course_code") {
		t.Fatalf("messages = %v", msgs)
	}
}

func TestMarksRange(t *testing.T) {
	s := &model.EvaluationSheet{
		Kind:     model.KindIA1,
		MaxMarks: map[model.OutcomeID]float64{"CO1": 30, "CO2": 20},
		Students: []model.StudentMarkRow{
			{RegNo: "711719205002", OutcomeTotals: map[model.OutcomeID]float64{"CO1": 26, "CO2": 12}},
			{RegNo: "711719205003", OutcomeTotals: map[model.OutcomeID]float64{"CO1": -2, "CO2": 25}},
		},
	}
	errs, warnings := MarksRange(s)
	if len(errs) != 1 || !strings.Contains(errs[0], "711719205003") {
		t.Errorf("errs = %v", errs)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "CO2") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestMarksRangeNoDeclaredMax(t *testing.T) {
	s := &model.EvaluationSheet{
		Kind: model.KindIA1,
		Students: []model.StudentMarkRow{
			{RegNo: "711719205002", OutcomeTotals: map[model.OutcomeID]float64{"CO1": 95}},
		},
	}
	errs, warnings := MarksRange(s)
	if len(errs) != 0 || len(warnings) != 0 {
		t.Errorf("no max declared, expected nothing: errs=%v warnings=%v", errs, warnings)
	}
}
