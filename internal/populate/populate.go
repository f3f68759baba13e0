// Package populate fills a copied attainment template with merged student
// data while leaving the template's formulas untouched.
package populate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/schema"
)

// Populate copies the template to a request-unique path under outDir, writes
// the metadata block and one row per merged record, and saves the copy with
// every formula definition intact. The original template is never opened for
// writing, so runs are independently retryable. Any write aimed at a
// formula-owned cell aborts with a schema violation: silently overwriting a
// formula would make the generated file silently wrong.
func Populate(templatePath, outDir string, layout *schema.TemplateLayout, reg model.Regulation, meta model.Metadata, records []model.MergedStudentRecord) (string, error) {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return "", model.Errorf(model.KindUnknownTemplate, "template file unavailable: %v", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(outDir, OutputName(meta.CourseCode, meta.CourseName, reg, time.Now()))
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", fmt.Errorf("copy template: %w", err)
	}

	if err := fill(outPath, layout, meta, records); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

func fill(outPath string, layout *schema.TemplateLayout, meta model.Metadata, records []model.MergedStudentRecord) error {
	f, err := excelize.OpenFile(outPath)
	if err != nil {
		return model.Errorf(model.KindUnknownTemplate, "open template copy: %v", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return model.Errorf(model.KindUnknownTemplate, "template has no worksheets")
	}
	ws := names[0]

	metaCells := []struct {
		addr  string
		value any
	}{
		{layout.MetadataCells.CourseCode, meta.CourseCode},
		{layout.MetadataCells.CourseName, meta.CourseName},
		{layout.MetadataCells.Faculty, meta.Faculty},
		{layout.MetadataCells.AcademicYear, meta.AcademicYear},
		{layout.MetadataCells.Department, meta.Department},
		{layout.MetadataCells.Regulation, meta.Regulation},
		{layout.MetadataCells.TotalStudents, len(records)},
	}
	for _, mc := range metaCells {
		if mc.addr == "" {
			continue
		}
		if err := setCell(f, ws, mc.addr, mc.value); err != nil {
			return err
		}
	}

	for i, rec := range records {
		row := layout.DataStartRow + i
		if err := setDataCell(f, ws, layout, layout.SerialCol, row, i+1); err != nil {
			return err
		}
		if err := setDataCell(f, ws, layout, layout.RegNoCol, row, rec.RegNo); err != nil {
			return err
		}
		if err := setDataCell(f, ws, layout, layout.NameCol, row, rec.Name); err != nil {
			return err
		}
		for id, col := range layout.OutcomeCols {
			mark, ok := rec.Marks[id]
			if !ok {
				// Missing outcomes were already reported by the merge; never
				// default them here.
				continue
			}
			if err := setDataCell(f, ws, layout, col, row, mark); err != nil {
				return err
			}
		}
	}

	// Drop cached formula results so consumers recompute on next open.
	if err := f.UpdateLinkedValue(); err != nil {
		return fmt.Errorf("refresh formula cache: %w", err)
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	return nil
}

func setDataCell(f *excelize.File, ws string, layout *schema.TemplateLayout, col, row int, value any) error {
	if layout.FormulaOwned(col) {
		return model.Errorf(model.KindSchemaViolation,
			"layout points writable data at formula-owned column %d", col)
	}
	addr, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name (%d,%d): %w", col, row, err)
	}
	return setCell(f, ws, addr, value)
}

func setCell(f *excelize.File, ws, addr string, value any) error {
	if formula, _ := f.GetCellFormula(ws, addr); formula != "" {
		return model.Errorf(model.KindSchemaViolation,
			"cell %s holds a formula; layout must not target it", addr)
	}
	if err := f.SetCellValue(ws, addr, value); err != nil {
		return fmt.Errorf("set cell %s: %w", addr, err)
	}
	return nil
}

// OutputName builds the artifact filename:
// <code>_<name>_<reg>_Attainment_<timestamp>_<id>.xlsx. The uuid fragment
// keeps simultaneous generations from colliding.
func OutputName(courseCode, courseName string, reg model.Regulation, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s_Attainment_%s_%s.xlsx",
		courseCode, safeName(courseName), reg,
		now.Format("20060102_150405"), uuid.NewString()[:8])
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > 50 {
		out = strings.TrimSpace(out[:50])
	}
	if out == "" {
		out = "Course"
	}
	return out
}
