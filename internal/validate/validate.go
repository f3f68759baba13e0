// Package validate cross-checks a set of evaluation sheets for consistency.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/schema"
)

// metadataFields are the fields that must agree across every sheet of a
// generation request, in reporting order.
var metadataFields = []struct {
	name  string
	value func(model.Metadata) string
}{
	{"course_code", func(m model.Metadata) string { return m.CourseCode }},
	{"course_name", func(m model.Metadata) string { return m.CourseName }},
	{"faculty", func(m model.Metadata) string { return m.Faculty }},
	{"academic_year", func(m model.Metadata) string { return m.AcademicYear }},
	{"department", func(m model.Metadata) string { return m.Department }},
}

// Validate compares metadata across all sheets and checks each sheet's
// regulation against the expected one. It is a pure function: data
// mismatches produce report entries, never errors, and every sheet is
// inspected even after the first mismatch so the report is complete in one
// pass.
func Validate(sheets []*model.EvaluationSheet, expected model.Regulation) model.ValidationReport {
	var report model.ValidationReport

	for _, field := range metadataFields {
		distinct := make(map[string]bool)
		var values []model.SourceValue
		for _, s := range sheets {
			v := field.value(s.Metadata)
			distinct[normalize(v)] = true
			values = append(values, model.SourceValue{Source: string(s.Kind), Value: v})
		}
		if len(distinct) > 1 {
			report.Mismatches = append(report.Mismatches, model.FieldMismatch{
				Field:  field.name,
				Values: values,
			})
		}
	}

	expectedNorm := schema.NormalizeRegulation(string(expected))
	var regValues []model.SourceValue
	for _, s := range sheets {
		if schema.NormalizeRegulation(s.Metadata.Regulation) != expectedNorm {
			regValues = append(regValues, model.SourceValue{Source: string(s.Kind), Value: s.Metadata.Regulation})
		}
	}
	if len(regValues) > 0 {
		values := append([]model.SourceValue{{Source: "request", Value: string(expectedNorm)}}, regValues...)
		report.Mismatches = append(report.Mismatches, model.FieldMismatch{
			Field:  "regulation",
			Values: values,
		})
	}

	return report
}

// MarksRange checks a sheet's outcome totals against its max-marks row.
// Negative marks are errors; marks above the declared maximum are warnings,
// since max rows are occasionally stale while negative entries never are.
func MarksRange(s *model.EvaluationSheet) (errs, warnings []string) {
	for _, st := range s.Students {
		for _, id := range sortedOutcomes(st.OutcomeTotals) {
			mark := st.OutcomeTotals[id]
			if mark < 0 {
				errs = append(errs, fmt.Sprintf("%s: negative mark for %s in %s: %v", s.Kind, st.RegNo, id, mark))
				continue
			}
			if max := s.MaxMarks[id]; max > 0 && mark > max {
				warnings = append(warnings, fmt.Sprintf("%s: mark exceeds maximum for %s in %s: %v > %v", s.Kind, st.RegNo, id, mark, max))
			}
		}
	}
	return errs, warnings
}

func sortedOutcomes(m map[model.OutcomeID]float64) []model.OutcomeID {
	ids := make([]model.OutcomeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
