// Package pipeline runs one generation request end to end: read every
// evaluation sheet, cross-validate the set, merge the student records,
// resolve the template, and populate it.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/joedanields/Automated-CO-PO/internal/merge"
	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/populate"
	"github.com/joedanields/Automated-CO-PO/internal/schema"
	"github.com/joedanields/Automated-CO-PO/internal/sheet"
	"github.com/joedanields/Automated-CO-PO/internal/store"
	"github.com/joedanields/Automated-CO-PO/internal/validate"
)

// Generator holds the per-process configuration of the pipeline. All request
// state flows through Generate explicitly, so concurrent requests cannot
// interfere.
type Generator struct {
	TemplateDir string
	OutputDir   string

	// History, when set, logs every generation attempt. Logging failures are
	// reported to slog but never fail the request.
	History *store.Store
}

// Request is one generation request as handed over by the upload layer. The
// pipeline only sees openable handles, never upload paths.
type Request struct {
	Regulation model.Regulation
	Category   model.Category
	DeptType   model.DeptType
	Files      map[model.InputKind]io.Reader
}

// Result describes a successful generation.
type Result struct {
	OutputPath   string   `json:"output_path"`
	CourseCode   string   `json:"course_code"`
	CourseName   string   `json:"course_name"`
	StudentCount int      `json:"student_count"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Generate runs the pipeline synchronously to completion or first fatal
// error. Structural parse errors abort immediately; consistency and merge
// problems are accumulated exhaustively and returned as one batched error so
// the user fixes everything in a single re-upload cycle.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	res, err := g.run(ctx, req)
	g.record(req, res, err)
	return res, err
}

func (g *Generator) run(ctx context.Context, req Request) (*Result, error) {
	required, err := schema.RequiredInputs(req.Regulation, req.Category)
	if err != nil {
		return nil, err
	}

	var warnings []string
	sheets := make([]*model.EvaluationSheet, 0, len(required))
	for _, kind := range required {
		r, ok := req.Files[kind]
		if !ok || r == nil {
			return nil, model.Errorf(model.KindMissingInput, "no file supplied for %s", kind)
		}
		s, err := sheet.Read(r, kind, req.Regulation, req.Category, req.DeptType)
		if err != nil {
			return nil, err
		}
		if s.DetectedKind != model.KindUnknown && s.DetectedKind != kind {
			warnings = append(warnings, fmt.Sprintf(
				"%s: sheet labels itself %q (%s)", kind, s.Metadata.Assessment, s.DetectedKind))
		}
		sheets = append(sheets, s)
		slog.Debug("parsed evaluation sheet",
			"kind", kind, "students", len(s.Students), "outcomes", len(s.MaxMarks))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := validate.Validate(sheets, req.Regulation)
	if !report.IsValid() {
		return nil, model.BatchError(model.KindConsistencyMismatch,
			"evaluation sheets disagree on metadata", report.Messages())
	}

	var rangeErrs []string
	for _, s := range sheets {
		errs, warns := validate.MarksRange(s)
		rangeErrs = append(rangeErrs, errs...)
		warnings = append(warnings, warns...)
	}
	if len(rangeErrs) > 0 {
		return nil, model.BatchError(model.KindMalformedMarks, "marks out of range", rangeErrs)
	}

	requiredOutcomes, err := schema.RequiredOutcomes(req.Regulation, req.Category)
	if err != nil {
		return nil, err
	}
	records, mergeReport := merge.Merge(sheets, requiredOutcomes)
	for _, nm := range mergeReport.NameMismatches {
		warnings = append(warnings, fmt.Sprintf("name differs for %s across sheets", nm.RegNo))
	}
	if mergeReport.HasErrors() {
		return nil, mergeError(mergeReport)
	}

	templatePath, err := schema.TemplatePath(req.Regulation, req.Category, req.DeptType)
	if err != nil {
		return nil, err
	}
	layout, err := schema.TemplateLayoutFor(req.Regulation, req.Category, req.DeptType)
	if err != nil {
		return nil, err
	}

	// Populating writes to disk; do not start it for a dead request.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := sheets[0].Metadata
	outPath, err := populate.Populate(
		filepath.Join(g.TemplateDir, templatePath), g.OutputDir, layout,
		schema.NormalizeRegulation(string(req.Regulation)), meta, records)
	if err != nil {
		return nil, err
	}

	slog.Info("generated attainment sheet",
		"course_code", meta.CourseCode,
		"regulation", req.Regulation,
		"category", req.Category,
		"students", len(records),
		"output", outPath)

	return &Result{
		OutputPath:   outPath,
		CourseCode:   meta.CourseCode,
		CourseName:   meta.CourseName,
		StudentCount: len(records),
		Warnings:     warnings,
	}, nil
}

// mergeError batches every merge problem into one classified error.
// Conflicting outcomes take precedence for the kind since they indicate
// authoring errors in the sheets themselves.
func mergeError(r model.MergeReport) error {
	var details []string
	for _, c := range r.Conflicts {
		details = append(details, fmt.Sprintf(
			"outcome %s for %s supplied by both %s and %s", c.Outcome, c.RegNo, c.Sources[0], c.Sources[1]))
	}
	for _, p := range r.PopulationMismatch {
		details = append(details, fmt.Sprintf(
			"student %s missing from %v", p.RegNo, p.MissingFrom))
	}
	for _, m := range r.MissingOutcomes {
		details = append(details, fmt.Sprintf(
			"no sheet supplies %s for %s", m.Outcome, m.RegNo))
	}
	kind := model.KindPopulationMismatch
	if len(r.Conflicts) > 0 {
		kind = model.KindConflictingOutcome
	}
	return model.BatchError(kind, "student records do not merge cleanly", details)
}

func (g *Generator) record(req Request, res *Result, genErr error) {
	if g.History == nil {
		return
	}
	rec := model.GenerationRecord{
		Regulation: string(req.Regulation),
		Category:   string(req.Category),
		DeptType:   string(req.DeptType),
		Status:     model.GenerationOK,
	}
	if res != nil {
		rec.CourseCode = res.CourseCode
		rec.CourseName = res.CourseName
		rec.StudentCount = res.StudentCount
		rec.OutputFile = filepath.Base(res.OutputPath)
	}
	if genErr != nil {
		rec.Status = model.GenerationFailed
		rec.Detail = genErr.Error()
	}
	if _, err := g.History.RecordGeneration(rec); err != nil {
		slog.Error("record generation history", "error", err)
	}
}
