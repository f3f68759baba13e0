package model

import "time"

// Regulation is a curriculum-version identifier in normalized form.
type Regulation string

const (
	RegulationR17 Regulation = "R17"
	RegulationR21 Regulation = "R21"
	RegulationR24 Regulation = "R24"
)

// Category is the course type, which determines the required input kinds.
type Category string

const (
	CategoryTheory     Category = "theory"
	CategoryAnalytical Category = "analytical"
	CategoryIntegrated Category = "integrated"
	CategoryLab        Category = "lab"
	CategoryProject    Category = "project"
)

// DeptType distinguishes core-department courses from Science & Humanities
// ones. Categories without the distinction use DeptDefault.
type DeptType string

const (
	DeptCore    DeptType = "dept"
	DeptSH      DeptType = "s&h"
	DeptDefault DeptType = "default"
)

// InputKind labels the role of one evaluation sheet within a generation
// request.
type InputKind string

const (
	KindIA1        InputKind = "IA1"
	KindIA2        InputKind = "IA2"
	KindModel      InputKind = "Model"
	KindIntegrated InputKind = "Integrated"
	KindLab        InputKind = "Lab"
	KindReview1    InputKind = "Review1"
	KindReview2    InputKind = "Review2"
	KindReview3    InputKind = "Review3"
	KindUnknown    InputKind = ""
)

// OutcomeID identifies a course outcome (CO1..CO5).
type OutcomeID string

// Metadata holds the fixed header fields of one evaluation sheet, trimmed of
// surrounding whitespace.
type Metadata struct {
	CourseCode    string
	CourseName    string
	Faculty       string
	AcademicYear  string
	Department    string
	Regulation    string
	TotalStudents string
	Assessment    string
}

// QuestionOutcome maps one question column of the sheet header to the outcome
// that question contributes to.
type QuestionOutcome struct {
	Question string
	Outcome  OutcomeID
}

// StudentMarkRow is one student's row from an evaluation sheet.
// OutcomeTotals are copied verbatim from the sheet's pre-totaled outcome
// columns; outcomes listed in Computed had no such column and were summed
// from the mapped per-question marks instead.
type StudentMarkRow struct {
	SerialNo      int
	RegNo         string
	Name          string
	OutcomeTotals map[OutcomeID]float64
	QuestionMarks map[string]float64
	Computed      map[OutcomeID]bool
}

// EvaluationSheet is the parsed form of one uploaded evaluation workbook.
// Immutable after the reader produces it.
type EvaluationSheet struct {
	Kind           InputKind
	DetectedKind   InputKind
	Metadata       Metadata
	OutcomeMapping []QuestionOutcome
	MaxMarks       map[OutcomeID]float64
	TotalMax       float64
	Students       []StudentMarkRow
}

// Student returns the row for a registration number, or nil.
func (s *EvaluationSheet) Student(regNo string) *StudentMarkRow {
	for i := range s.Students {
		if s.Students[i].RegNo == regNo {
			return &s.Students[i]
		}
	}
	return nil
}

// SourceValue is one sheet's value for a metadata field, used in mismatch
// reporting. Source is the input kind, or "request" for the caller-supplied
// expectation.
type SourceValue struct {
	Source string `json:"source"`
	Value  string `json:"value"`
}

// FieldMismatch records that a metadata field carried more than one distinct
// value across the sheet set.
type FieldMismatch struct {
	Field  string        `json:"field"`
	Values []SourceValue `json:"values"`
}

// ValidationReport is the complete result of cross-sheet consistency
// validation. It is built in one pass over all sheets and never truncated.
type ValidationReport struct {
	Mismatches []FieldMismatch `json:"mismatches"`
}

// IsValid reports whether no mismatch was found.
func (r ValidationReport) IsValid() bool { return len(r.Mismatches) == 0 }

// Messages renders one human-readable line per mismatch.
func (r ValidationReport) Messages() []string {
	var msgs []string
	for _, m := range r.Mismatches {
		line := "mismatch in '" + m.Field + "':"
		for _, v := range m.Values {
			line += " '" + v.Value + "' (" + v.Source + ")"
		}
		msgs = append(msgs, line)
	}
	return msgs
}

// MergedStudentRecord is the unified per-student record across all accepted
// sheets, keyed by registration number.
type MergedStudentRecord struct {
	RegNo   string
	Name    string
	Marks   map[OutcomeID]float64
	Sources []InputKind
}

// OutcomeConflict records that two sheets both supplied a total for the same
// outcome of the same student.
type OutcomeConflict struct {
	RegNo   string      `json:"reg_no"`
	Outcome OutcomeID   `json:"outcome"`
	Sources []InputKind `json:"sources"`
}

// PopulationMismatch records a student present in some sheets but absent from
// others.
type PopulationMismatch struct {
	RegNo       string      `json:"reg_no"`
	MissingFrom []InputKind `json:"missing_from"`
}

// MissingOutcome records a required outcome that no sheet supplied for a
// student. Missing outcomes are reported, never defaulted.
type MissingOutcome struct {
	RegNo   string    `json:"reg_no"`
	Outcome OutcomeID `json:"outcome"`
}

// NameMismatch is a non-fatal warning that a student's recorded name differs
// between sheets.
type NameMismatch struct {
	RegNo string        `json:"reg_no"`
	Names []SourceValue `json:"names"`
}

// MergeReport accumulates every merge-time problem so the caller can report
// all of them at once.
type MergeReport struct {
	Conflicts          []OutcomeConflict    `json:"conflicts,omitempty"`
	PopulationMismatch []PopulationMismatch `json:"population_mismatch,omitempty"`
	MissingOutcomes    []MissingOutcome     `json:"missing_outcomes,omitempty"`
	NameMismatches     []NameMismatch       `json:"name_mismatches,omitempty"`
}

// HasErrors reports whether the merge found anything fatal. Name mismatches
// are warnings and do not block generation.
func (r MergeReport) HasErrors() bool {
	return len(r.Conflicts) > 0 || len(r.PopulationMismatch) > 0 || len(r.MissingOutcomes) > 0
}

// GenerationRecord is one row of the generation history log.
type GenerationRecord struct {
	ID           int64     `json:"id"`
	CourseCode   string    `json:"course_code"`
	CourseName   string    `json:"course_name"`
	Regulation   string    `json:"regulation"`
	Category     string    `json:"category"`
	DeptType     string    `json:"dept_type"`
	StudentCount int       `json:"student_count"`
	OutputFile   string    `json:"output_file"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Generation statuses.
const (
	GenerationOK     = "ok"
	GenerationFailed = "failed"
)
