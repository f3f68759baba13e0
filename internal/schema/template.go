package schema

import (
	"path/filepath"

	"github.com/joedanields/Automated-CO-PO/internal/model"
)

// TemplateLayout describes the writable cells of an attainment template: the
// metadata block, the student-table region, and which columns inside that
// region are owned by the template's formulas and must never be written.
type TemplateLayout struct {
	MetadataCells MetadataCells

	DataStartRow int
	SerialCol    int
	RegNoCol     int
	NameCol      int

	// OutcomeCols maps each outcome id to the column its merged mark goes in.
	OutcomeCols map[model.OutcomeID]int

	// FormulaCols are the columns of the student-table region holding the
	// attainment formulas. Writing any of them is a schema violation.
	FormulaCols []int
}

// FormulaOwned reports whether a column belongs to the template's formulas.
func (l *TemplateLayout) FormulaOwned(col int) bool {
	for _, c := range l.FormulaCols {
		if c == col {
			return true
		}
	}
	return false
}

// templateMetadataCells is the metadata block templates share with
// evaluation sheets: values in column C above the student table.
var templateMetadataCells = MetadataCells{
	CourseCode:   "C2",
	CourseName:   "C3",
	Faculty:      "C4",
	AcademicYear: "C5",
	Department:   "C6",
}

func templateLayout(outcomeCols map[model.OutcomeID]int, formulaCols ...int) *TemplateLayout {
	return &TemplateLayout{
		MetadataCells: templateMetadataCells,
		DataStartRow:  7,
		SerialCol:     1,
		RegNoCol:      2,
		NameCol:       3,
		OutcomeCols:   outcomeCols,
		FormulaCols:   formulaCols,
	}
}

// Per-category template layouts. Each outcome's mark column is followed by
// the template's own attainment-percentage column; the trailing columns hold
// the overall attainment rollup.
var (
	theoryTemplate = templateLayout(
		map[model.OutcomeID]int{"CO1": 4, "CO2": 6, "CO3": 8, "CO4": 10, "CO5": 12},
		5, 7, 9, 11, 13, 14,
	)
	labTemplate = templateLayout(
		map[model.OutcomeID]int{"CO1": 4, "CO2": 5, "CO3": 6, "CO4": 7, "CO5": 8},
		9, 10,
	)
	projectTemplate = templateLayout(
		map[model.OutcomeID]int{"CO1": 4, "CO2": 5, "CO3": 6, "CO4": 7},
		8, 9,
	)
)

type templateEntry struct {
	file   string
	layout *TemplateLayout
}

// templateMap mirrors the institutional template inventory: one workbook per
// regulation/category/department-type, grouped in per-regulation folders.
var templateMap = map[model.Regulation]map[model.Category]map[model.DeptType]templateEntry{
	model.RegulationR17: {
		model.CategoryTheory: {
			model.DeptCore: {"Dept THEORY template_R17 V3 AtSheet.xlsx", theoryTemplate},
			model.DeptSH:   {"S&H THEORY template_R17 V3 AtSheet.xlsx", theoryTemplate},
		},
		model.CategoryAnalytical: {
			model.DeptCore: {"Dept THEORY Analytical template_R17 V3 AtSheet.xlsx", theoryTemplate},
			model.DeptSH:   {"S&H THEORY Analytical template_R17 V3 AtSheet.xlsx", theoryTemplate},
		},
		model.CategoryLab: {
			model.DeptDefault: {"LAB template_R17 V3 AtSheet.xlsx", labTemplate},
		},
		model.CategoryProject: {
			model.DeptDefault: {"Project template_R17 V3 AtSheet.xlsx", projectTemplate},
		},
	},
	model.RegulationR21: r21Templates,
	// R24 ships on the R21 template set until dedicated templates land.
	model.RegulationR24: r21Templates,
}

var r21Templates = map[model.Category]map[model.DeptType]templateEntry{
	model.CategoryTheory: {
		model.DeptCore: {"Dept THEORY template_R21 V1 AtSheet.xlsx", theoryTemplate},
		model.DeptSH:   {"Dept THEORY template_R21 V1 AtSheet.xlsx", theoryTemplate},
	},
	model.CategoryAnalytical: {
		model.DeptCore: {"Dept THEORY Analytical template_R21 V1 AtSheet.xlsx", theoryTemplate},
		model.DeptSH:   {"Dept THEORY Analytical template_R21 V1 AtSheet.xlsx", theoryTemplate},
	},
	model.CategoryIntegrated: {
		model.DeptCore: {"Dept Integrated template_R21 V1 AtSheet.xlsx", theoryTemplate},
		model.DeptSH:   {"Dept Integrated template_R21 V1 AtSheet.xlsx", theoryTemplate},
	},
	model.CategoryLab: {
		model.DeptDefault: {"LAB template_R21 V1 AtSheet.xlsx", labTemplate},
	},
	model.CategoryProject: {
		model.DeptDefault: {"Project template_R21 V1 AtSheet.xlsx", projectTemplate},
	},
}

var regulationFolders = map[model.Regulation]string{
	model.RegulationR17: "Reg_17",
	model.RegulationR21: "Reg_21",
	model.RegulationR24: "Reg_24",
}

func templateFor(reg model.Regulation, cat model.Category, dept model.DeptType) (templateEntry, Key, error) {
	k := NormalizeKey(reg, cat, dept)
	cats, ok := templateMap[k.Regulation]
	if !ok {
		return templateEntry{}, k, model.Errorf(model.KindUnknownTemplate,
			"no templates for regulation %q", reg)
	}
	depts, ok := cats[k.Category]
	if !ok {
		return templateEntry{}, k, model.Errorf(model.KindUnknownTemplate,
			"no %q template for regulation %q", cat, reg)
	}
	if e, ok := depts[k.DeptType]; ok {
		return e, k, nil
	}
	if e, ok := depts[model.DeptDefault]; ok {
		return e, k, nil
	}
	return templateEntry{}, k, model.Errorf(model.KindUnknownTemplate,
		"no template for department type %q under %s/%s", dept, k.Regulation, k.Category)
}

// TemplatePath resolves the template file for the combination, relative to
// the configured template directory.
func TemplatePath(reg model.Regulation, cat model.Category, dept model.DeptType) (string, error) {
	e, k, err := templateFor(reg, cat, dept)
	if err != nil {
		return "", err
	}
	return filepath.Join(regulationFolders[k.Regulation], e.file), nil
}

// TemplateLayoutFor resolves the writable-cell layout of the template for
// the combination.
func TemplateLayoutFor(reg model.Regulation, cat model.Category, dept model.DeptType) (*TemplateLayout, error) {
	e, _, err := templateFor(reg, cat, dept)
	if err != nil {
		return nil, err
	}
	return e.layout, nil
}

// requiredInputs lists the evaluation sheets each category needs. R21/R24
// theory courses replaced the model exam with the integrated assessment.
var requiredInputs = map[model.Regulation]map[model.Category][]model.InputKind{
	model.RegulationR17: {
		model.CategoryTheory:     {model.KindIA1, model.KindIA2, model.KindModel},
		model.CategoryAnalytical: {model.KindIA1, model.KindIA2, model.KindModel},
		model.CategoryLab:        {model.KindLab},
		model.CategoryProject:    {model.KindReview1, model.KindReview2, model.KindReview3},
	},
	model.RegulationR21: r21Inputs,
	model.RegulationR24: r21Inputs,
}

var r21Inputs = map[model.Category][]model.InputKind{
	model.CategoryTheory:     {model.KindIA1, model.KindIA2, model.KindIntegrated},
	model.CategoryAnalytical: {model.KindIA1, model.KindIA2, model.KindIntegrated},
	model.CategoryIntegrated: {model.KindIA1, model.KindIA2, model.KindIntegrated},
	model.CategoryLab:        {model.KindLab},
	model.CategoryProject:    {model.KindReview1, model.KindReview2, model.KindReview3},
}

// RequiredInputs returns the input kinds the category needs, in the order
// sheets are merged and records are emitted.
func RequiredInputs(reg model.Regulation, cat model.Category) ([]model.InputKind, error) {
	k := NormalizeKey(reg, cat, model.DeptDefault)
	cats, ok := requiredInputs[k.Regulation]
	if !ok {
		return nil, model.Errorf(model.KindSchemaNotFound, "unknown regulation %q", reg)
	}
	kinds, ok := cats[k.Category]
	if !ok {
		return nil, model.Errorf(model.KindSchemaNotFound,
			"unknown category %q for regulation %q", cat, reg)
	}
	return kinds, nil
}

// RequiredOutcomes returns the outcome ids a merged record must carry for
// the category.
func RequiredOutcomes(reg model.Regulation, cat model.Category) ([]model.OutcomeID, error) {
	l, err := Lookup(reg, cat, model.DeptDefault)
	if err != nil {
		return nil, err
	}
	return l.Outcomes, nil
}

// Regulations lists the supported regulations in release order.
func Regulations() []model.Regulation {
	return []model.Regulation{model.RegulationR17, model.RegulationR21, model.RegulationR24}
}

// Categories lists the categories available under a regulation.
func Categories(reg model.Regulation) []model.Category {
	k := NormalizeKey(reg, "", model.DeptDefault)
	cats, ok := templateMap[k.Regulation]
	if !ok {
		return nil
	}
	order := []model.Category{
		model.CategoryTheory, model.CategoryAnalytical, model.CategoryIntegrated,
		model.CategoryLab, model.CategoryProject,
	}
	var out []model.Category
	for _, c := range order {
		if _, ok := cats[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// DeptTypes lists the department-type choices for a regulation and category.
// Categories without the distinction report just "default".
func DeptTypes(reg model.Regulation, cat model.Category) []model.DeptType {
	k := NormalizeKey(reg, cat, model.DeptDefault)
	cats, ok := templateMap[k.Regulation]
	if !ok {
		return nil
	}
	depts, ok := cats[k.Category]
	if !ok {
		return nil
	}
	if _, ok := depts[model.DeptDefault]; ok && len(depts) == 1 {
		return []model.DeptType{model.DeptDefault}
	}
	var out []model.DeptType
	for _, d := range []model.DeptType{model.DeptCore, model.DeptSH} {
		if _, ok := depts[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
