// Package schema holds the declarative layout tables for evaluation sheets
// and attainment templates, keyed by (regulation, category, department-type).
// The tables are built once at process start and are read-only afterwards, so
// concurrent requests can share them without locking.
package schema

import (
	"regexp"
	"strings"

	"github.com/joedanields/Automated-CO-PO/internal/model"
)

// Key identifies one layout variant.
type Key struct {
	Regulation model.Regulation
	Category   model.Category
	DeptType   model.DeptType
}

// MetadataCells gives the fixed cell address of each metadata field. An empty
// address means the field is not present in that layout.
type MetadataCells struct {
	CourseCode    string
	CourseName    string
	Faculty       string
	AcademicYear  string
	Department    string
	Regulation    string
	TotalStudents string
	Assessment    string
}

// SheetLayout describes where an evaluation sheet keeps its metadata block,
// its two-row outcome-mapping header, and its student table.
type SheetLayout struct {
	MetadataCells MetadataCells

	// QuestionRow enumerates question numbers, with "CO" markers over
	// pre-totaled outcome columns and a "TOTAL" marker over the grand total.
	QuestionRow int
	// OutcomeRow names the outcome each question column contributes to, and
	// the outcome number under each "CO" marker.
	OutcomeRow  int
	MaxMarksRow int
	// DataStartRow is the first student row; reading stops at the first blank
	// registration-number cell.
	DataStartRow int

	SerialCol    int
	RegNoCol     int
	NameCol      int
	FirstMarkCol int

	// Outcomes are the outcome ids this layout recognizes. A header that
	// references anything else is a parse error.
	Outcomes []model.OutcomeID
}

// Recognizes reports whether the layout knows the outcome id.
func (l *SheetLayout) Recognizes(id model.OutcomeID) bool {
	for _, o := range l.Outcomes {
		if o == id {
			return true
		}
	}
	return false
}

// evalMetadataCells is the metadata block shared by every documented
// evaluation-sheet layout: field labels in column A, values in column C,
// rows 2 through 9.
var evalMetadataCells = MetadataCells{
	CourseCode:    "C2",
	CourseName:    "C3",
	Faculty:       "C4",
	AcademicYear:  "C5",
	Department:    "C6",
	Regulation:    "C7",
	TotalStudents: "C8",
	Assessment:    "C9",
}

func evalLayout(outcomes ...model.OutcomeID) *SheetLayout {
	return &SheetLayout{
		MetadataCells: evalMetadataCells,
		QuestionRow:   11,
		OutcomeRow:    12,
		MaxMarksRow:   13,
		DataStartRow:  14,
		SerialCol:     1,
		RegNoCol:      2,
		NameCol:       3,
		FirstMarkCol:  4,
		Outcomes:      outcomes,
	}
}

var (
	fiveOutcomes = []model.OutcomeID{"CO1", "CO2", "CO3", "CO4", "CO5"}
	fourOutcomes = []model.OutcomeID{"CO1", "CO2", "CO3", "CO4"}
)

// sheetLayouts maps every supported combination to its evaluation-sheet
// layout. R21 carried the R17 sheet structure forward and added the
// integrated category; R24 reuses the R21 layouts.
var sheetLayouts = map[Key]*SheetLayout{}

func init() {
	variants := []struct {
		cat      model.Category
		depts    []model.DeptType
		outcomes []model.OutcomeID
	}{
		{model.CategoryTheory, []model.DeptType{model.DeptCore, model.DeptSH}, fiveOutcomes},
		{model.CategoryAnalytical, []model.DeptType{model.DeptCore, model.DeptSH}, fiveOutcomes},
		{model.CategoryLab, []model.DeptType{model.DeptDefault}, fiveOutcomes},
		{model.CategoryProject, []model.DeptType{model.DeptDefault}, fourOutcomes},
	}
	for _, reg := range []model.Regulation{model.RegulationR17, model.RegulationR21, model.RegulationR24} {
		for _, v := range variants {
			for _, dept := range v.depts {
				sheetLayouts[Key{reg, v.cat, dept}] = evalLayout(v.outcomes...)
			}
		}
		if reg != model.RegulationR17 {
			for _, dept := range []model.DeptType{model.DeptCore, model.DeptSH} {
				sheetLayouts[Key{reg, model.CategoryIntegrated, dept}] = evalLayout(fiveOutcomes...)
			}
		}
	}
}

// NormalizeKey canonicalizes the request identifiers: regulations upper-case,
// categories lower-case, and a missing department type mapped to "default".
func NormalizeKey(reg model.Regulation, cat model.Category, dept model.DeptType) Key {
	k := Key{
		Regulation: model.Regulation(strings.ToUpper(strings.TrimSpace(string(reg)))),
		Category:   model.Category(strings.ToLower(strings.TrimSpace(string(cat)))),
		DeptType:   model.DeptType(strings.ToLower(strings.TrimSpace(string(dept)))),
	}
	if k.DeptType == "" {
		k.DeptType = model.DeptDefault
	}
	return k
}

var knownDeptTypes = map[model.DeptType]bool{
	model.DeptCore:    true,
	model.DeptSH:      true,
	model.DeptDefault: true,
}

// Lookup resolves the evaluation-sheet layout for the combination. A known
// department type with no dedicated entry falls back to the default variant,
// then to the core-department one: the sheet structure only varies by
// category, so any variant of the category serves callers that do not care
// about the department type. Unrecognized spellings never fall back.
func Lookup(reg model.Regulation, cat model.Category, dept model.DeptType) (*SheetLayout, error) {
	k := NormalizeKey(reg, cat, dept)
	if knownDeptTypes[k.DeptType] {
		for _, d := range []model.DeptType{k.DeptType, model.DeptDefault, model.DeptCore} {
			k.DeptType = d
			if l, ok := sheetLayouts[k]; ok {
				return l, nil
			}
		}
	}
	return nil, model.Errorf(model.KindSchemaNotFound,
		"no sheet layout for regulation %q, category %q, department type %q", reg, cat, dept)
}

var regulationYear = regexp.MustCompile(`R?20?(\d{2})`)

// NormalizeRegulation reduces the free-form regulation strings instructors
// write ("R2017 - AUC", "Regulation 2021") to the canonical R17/R21/R24 form.
func NormalizeRegulation(s string) model.Regulation {
	up := strings.ToUpper(strings.TrimSpace(s))
	if m := regulationYear.FindStringSubmatch(up); m != nil {
		return model.Regulation("R" + m[1])
	}
	return model.Regulation(up)
}

// DetectInputKind classifies a sheet's assessment label (e.g. "INTERNAL
// ASSESSMENT-1") into the input kind it should have been uploaded as.
// Returns KindUnknown when the label matches nothing.
func DetectInputKind(assessment string) model.InputKind {
	up := strings.ToUpper(assessment)
	switch {
	case strings.Contains(up, "INTERNAL") || strings.Contains(up, "IA"):
		if strings.Contains(up, "1") {
			return model.KindIA1
		}
		if strings.Contains(up, "2") {
			return model.KindIA2
		}
	case strings.Contains(up, "MODEL"):
		return model.KindModel
	case strings.Contains(up, "LAB"):
		return model.KindLab
	case strings.Contains(up, "PROJECT") || strings.Contains(up, "REVIEW"):
		switch {
		case strings.Contains(up, "1"):
			return model.KindReview1
		case strings.Contains(up, "2"):
			return model.KindReview2
		case strings.Contains(up, "3"):
			return model.KindReview3
		}
	case strings.Contains(up, "INTEGRATED"):
		return model.KindIntegrated
	}
	return model.KindUnknown
}
