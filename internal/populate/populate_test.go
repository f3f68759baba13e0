package populate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/schema"
)

// theoryFormulas are the formula cells a theory attainment template carries
// in its first student row: a percentage column after each outcome column and
// the overall rollup pair.
var theoryFormulas = map[string]string{
	"E7": "D7/30*100",
	"G7": "F7/20*100",
	"I7": "H7/25*100",
	"K7": "J7/25*100",
	"M7": "L7/50*100",
	"N7": "AVERAGE(E7,G7,I7,K7,M7)",
}

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	ws := "Sheet1"
	for _, addr := range []string{"A2", "A3", "A4", "A5", "A6"} {
		if err := f.SetCellValue(ws, addr, "label"); err != nil {
			t.Fatalf("set %s: %v", addr, err)
		}
	}
	for addr, formula := range theoryFormulas {
		if err := f.SetCellFormula(ws, addr, formula); err != nil {
			t.Fatalf("set formula %s: %v", addr, err)
		}
	}
	path := filepath.Join(dir, "theory_template.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save template: %v", err)
	}
	return path
}

func theoryLayout(t *testing.T) *schema.TemplateLayout {
	t.Helper()
	l, err := schema.TemplateLayoutFor("R17", "theory", "dept")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return l
}

func testMeta() model.Metadata {
	return model.Metadata{
		CourseCode:   "C211",
		CourseName:   "COMPUTER ARCHITECTURE",
		Faculty:      "ANANTHI M",
		AcademicYear: "2020-2021 (EVEN)",
		Department:   "B.TECH.IT (2ND YEAR)",
		Regulation:   "R2017 - AUC",
	}
}

func testRecords() []model.MergedStudentRecord {
	return []model.MergedStudentRecord{
		{RegNo: "711719205002", Name: "ADITHYA R", Marks: map[model.OutcomeID]float64{
			"CO1": 26, "CO2": 12, "CO3": 18, "CO4": 20, "CO5": 35,
		}},
		{RegNo: "711719205003", Name: "BALAJI K", Marks: map[model.OutcomeID]float64{
			"CO1": 22, "CO2": 14, "CO3": 16, "CO4": 19, "CO5": 40,
		}},
	}
}

func TestPopulate(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir)
	outDir := filepath.Join(dir, "out")

	outPath, err := Populate(tmpl, outDir, theoryLayout(t), "R17", testMeta(), testRecords())
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	ws := f.GetSheetList()[0]

	get := func(addr string) string {
		t.Helper()
		v, err := f.GetCellValue(ws, addr)
		if err != nil {
			t.Fatalf("get %s: %v", addr, err)
		}
		return v
	}

	if get("C2") != "C211" || get("C6") != "B.TECH.IT (2ND YEAR)" {
		t.Errorf("metadata block: C2=%q C6=%q", get("C2"), get("C6"))
	}
	if get("B7") != "711719205002" || get("B8") != "711719205003" {
		t.Errorf("regno order: B7=%q B8=%q", get("B7"), get("B8"))
	}
	if get("D7") != "26" || get("L8") != "40" {
		t.Errorf("outcome marks: D7=%q L8=%q", get("D7"), get("L8"))
	}
	if get("A8") != "2" {
		t.Errorf("serial A8 = %q", get("A8"))
	}

	// Every formula definition must survive population verbatim.
	for addr, want := range theoryFormulas {
		got, err := f.GetCellFormula(ws, addr)
		if err != nil {
			t.Fatalf("formula %s: %v", addr, err)
		}
		if got != want {
			t.Errorf("formula %s = %q, want %q", addr, got, want)
		}
	}
}

func TestPopulateLeavesTemplateUntouched(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeTemplate(t, dir)
	before, err := os.ReadFile(tmpl)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Populate(tmpl, filepath.Join(dir, "out"), theoryLayout(t), "R17", testMeta(), testRecords()); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	after, err := os.ReadFile(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("template file changed on disk")
	}
}

func TestPopulateSkipsMissingMarks(t *testing.T) {
	dir := t.TempDir()
	records := []model.MergedStudentRecord{
		{RegNo: "A", Name: "AYE", Marks: map[model.OutcomeID]float64{"CO1": 26}},
	}

	outPath, err := Populate(writeTemplate(t, dir), filepath.Join(dir, "out"), theoryLayout(t), "R17", testMeta(), records)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	ws := f.GetSheetList()[0]
	if v, _ := f.GetCellValue(ws, "F7"); v != "" {
		t.Errorf("missing CO2 must stay blank, got %q", v)
	}
}

func TestPopulateRejectsFormulaOwnedColumn(t *testing.T) {
	dir := t.TempDir()
	bad := *theoryLayout(t)
	bad.OutcomeCols = map[model.OutcomeID]int{"CO1": 5} // column E holds formulas

	_, err := Populate(writeTemplate(t, dir), filepath.Join(dir, "out"), &bad, "R17", testMeta(), testRecords())
	if model.KindOf(err) != model.KindSchemaViolation {
		t.Fatalf("expected schema_violation, got %v", err)
	}
	assertNoOutputs(t, filepath.Join(dir, "out"))
}

func TestPopulateRejectsFormulaCell(t *testing.T) {
	// The layout does not declare column 5 as formula-owned, but the workbook
	// has a formula there; the cell-level guard must still refuse.
	dir := t.TempDir()
	bad := *theoryLayout(t)
	bad.OutcomeCols = map[model.OutcomeID]int{"CO1": 5}
	bad.FormulaCols = nil

	_, err := Populate(writeTemplate(t, dir), filepath.Join(dir, "out"), &bad, "R17", testMeta(), testRecords())
	if model.KindOf(err) != model.KindSchemaViolation {
		t.Fatalf("expected schema_violation, got %v", err)
	}
	assertNoOutputs(t, filepath.Join(dir, "out"))
}

func assertNoOutputs(t *testing.T, outDir string) {
	t.Helper()
	entries, err := os.ReadDir(outDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("failed run left %d file(s) behind", len(entries))
	}
}

func TestPopulateMissingTemplate(t *testing.T) {
	dir := t.TempDir()
	_, err := Populate(filepath.Join(dir, "nope.xlsx"), filepath.Join(dir, "out"), theoryLayout(t), "R17", testMeta(), nil)
	if model.KindOf(err) != model.KindUnknownTemplate {
		t.Fatalf("expected unknown_template, got %v", err)
	}
}

func TestOutputName(t *testing.T) {
	now := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	name := OutputName("C211", "COMPUTER ARCHITECTURE", "R17", now)
	if !strings.HasPrefix(name, "C211_COMPUTER ARCHITECTURE_R17_Attainment_20260826_103000_") {
		t.Errorf("name = %q", name)
	}
	if !strings.HasSuffix(name, ".xlsx") {
		t.Errorf("name = %q", name)
	}

	// Two calls at the same instant must still differ.
	if OutputName("C211", "X", "R17", now) == OutputName("C211", "X", "R17", now) {
		t.Error("names must be unique per call")
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"COMPUTER ARCHITECTURE", "COMPUTER ARCHITECTURE"},
		{"C/C++ & <Systems>", "CC  Systems"},
		{"///", "Course"},
		{strings.Repeat("A", 80), strings.Repeat("A", 50)},
	}
	for _, c := range cases {
		if got := safeName(c.in); got != c.want {
			t.Errorf("safeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
