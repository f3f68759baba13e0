// Package merge joins per-student records across evaluation sheets into one
// unified record set.
package merge

import (
	"sort"
	"strings"

	"github.com/joedanields/Automated-CO-PO/internal/model"
)

// Merge combines the sheets' per-student outcome totals by registration
// number, preserving first-seen order starting from the first sheet. Sheets
// are expected to be outcome-disjoint (IA1 supplies CO1/CO2, IA2 supplies
// CO3/CO4, and so on), so two sheets supplying the same outcome for the same
// student is a data authoring error, not something to overwrite silently.
// All problems are accumulated into the report; nothing fails fast.
func Merge(sheets []*model.EvaluationSheet, required []model.OutcomeID) ([]model.MergedStudentRecord, model.MergeReport) {
	var (
		records []model.MergedStudentRecord
		report  model.MergeReport
		index   = make(map[string]int)
		sources = make(map[string]map[model.OutcomeID]model.InputKind)
	)

	for _, s := range sheets {
		for _, st := range s.Students {
			i, seen := index[st.RegNo]
			if !seen {
				i = len(records)
				index[st.RegNo] = i
				records = append(records, model.MergedStudentRecord{
					RegNo: st.RegNo,
					Name:  st.Name,
					Marks: make(map[model.OutcomeID]float64),
				})
				sources[st.RegNo] = make(map[model.OutcomeID]model.InputKind)
			}
			rec := &records[i]
			rec.Sources = append(rec.Sources, s.Kind)

			if seen && normalizeName(rec.Name) != normalizeName(st.Name) {
				report.NameMismatches = appendNameMismatch(report.NameMismatches, rec.RegNo, rec.Name, st.Name, s.Kind)
			}

			for _, id := range sortedOutcomes(st.OutcomeTotals) {
				if prev, ok := sources[st.RegNo][id]; ok {
					report.Conflicts = append(report.Conflicts, model.OutcomeConflict{
						RegNo:   st.RegNo,
						Outcome: id,
						Sources: []model.InputKind{prev, s.Kind},
					})
					continue
				}
				rec.Marks[id] = st.OutcomeTotals[id]
				sources[st.RegNo][id] = s.Kind
			}
		}
	}

	// Every student must appear in every sheet of the request.
	for i := range records {
		rec := &records[i]
		var missing []model.InputKind
		for _, s := range sheets {
			if s.Student(rec.RegNo) == nil {
				missing = append(missing, s.Kind)
			}
		}
		if len(missing) > 0 {
			report.PopulationMismatch = append(report.PopulationMismatch, model.PopulationMismatch{
				RegNo:       rec.RegNo,
				MissingFrom: missing,
			})
		}
		for _, id := range required {
			if _, ok := rec.Marks[id]; !ok {
				report.MissingOutcomes = append(report.MissingOutcomes, model.MissingOutcome{
					RegNo:   rec.RegNo,
					Outcome: id,
				})
			}
		}
	}

	return records, report
}

func appendNameMismatch(list []model.NameMismatch, regNo, first, other string, kind model.InputKind) []model.NameMismatch {
	for i := range list {
		if list[i].RegNo == regNo {
			list[i].Names = append(list[i].Names, model.SourceValue{Source: string(kind), Value: other})
			return list
		}
	}
	return append(list, model.NameMismatch{
		RegNo: regNo,
		Names: []model.SourceValue{
			{Source: "first-seen", Value: first},
			{Source: string(kind), Value: other},
		},
	})
}

func sortedOutcomes(m map[model.OutcomeID]float64) []model.OutcomeID {
	ids := make([]model.OutcomeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func normalizeName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
