// Package sheet reads one evaluation workbook into its structured form.
package sheet

import (
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joedanields/Automated-CO-PO/internal/model"
	"github.com/joedanields/Automated-CO-PO/internal/schema"
)

// Read parses one evaluation sheet uploaded under the given input kind.
// Pre-totaled outcome columns are trusted over recomputation: question-to-
// outcome schemes vary per instructor, so re-deriving totals risks applying
// the wrong scheme. Only outcomes with no pre-totaled column are summed from
// the mapped question marks, and those rows are flagged as computed.
func Read(r io.Reader, kind model.InputKind, reg model.Regulation, cat model.Category, dept model.DeptType) (*model.EvaluationSheet, error) {
	layout, err := schema.Lookup(reg, cat, dept)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, model.Errorf(model.KindMalformedMetadata, "%s: open workbook: %v", kind, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, model.Errorf(model.KindMalformedMetadata, "%s: workbook has no worksheets", kind)
	}
	ws := names[0]

	meta, err := readMetadata(f, ws, kind, layout.MetadataCells)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(ws)
	if err != nil {
		return nil, model.Errorf(model.KindMalformedMetadata, "%s: read rows: %v", kind, err)
	}

	hdr, err := readHeader(rows, kind, layout)
	if err != nil {
		return nil, err
	}

	maxMarks, totalMax, err := readMaxMarks(rows, kind, layout, hdr)
	if err != nil {
		return nil, err
	}

	students, err := readStudents(rows, kind, layout, hdr)
	if err != nil {
		return nil, err
	}

	return &model.EvaluationSheet{
		Kind:           kind,
		DetectedKind:   schema.DetectInputKind(meta.Assessment),
		Metadata:       meta,
		OutcomeMapping: hdr.mapping,
		MaxMarks:       maxMarks,
		TotalMax:       totalMax,
		Students:       students,
	}, nil
}

func readMetadata(f *excelize.File, ws string, kind model.InputKind, cells schema.MetadataCells) (model.Metadata, error) {
	get := func(addr string) string {
		if addr == "" {
			return ""
		}
		v, _ := f.GetCellValue(ws, addr)
		return strings.TrimSpace(v)
	}

	meta := model.Metadata{
		CourseCode:    get(cells.CourseCode),
		CourseName:    get(cells.CourseName),
		Faculty:       get(cells.Faculty),
		AcademicYear:  get(cells.AcademicYear),
		Department:    get(cells.Department),
		Regulation:    get(cells.Regulation),
		TotalStudents: get(cells.TotalStudents),
		Assessment:    get(cells.Assessment),
	}

	required := []struct {
		field string
		addr  string
		value string
	}{
		{"course_code", cells.CourseCode, meta.CourseCode},
		{"course_name", cells.CourseName, meta.CourseName},
		{"faculty", cells.Faculty, meta.Faculty},
		{"academic_year", cells.AcademicYear, meta.AcademicYear},
		{"department", cells.Department, meta.Department},
		{"regulation", cells.Regulation, meta.Regulation},
		{"assessment", cells.Assessment, meta.Assessment},
	}
	for _, req := range required {
		if req.value == "" {
			return model.Metadata{}, model.Errorf(model.KindMalformedMetadata,
				"%s: required field %s is empty (cell %s)", kind, req.field, req.addr)
		}
	}
	return meta, nil
}

// header is the parsed two-row outcome-mapping header.
type header struct {
	mapping   []model.QuestionOutcome
	questions []questionCol
	totals    map[model.OutcomeID]int
	grandCol  int
}

type questionCol struct {
	col     int
	label   string
	outcome model.OutcomeID
}

func readHeader(rows [][]string, kind model.InputKind, layout *schema.SheetLayout) (*header, error) {
	hdr := &header{totals: make(map[model.OutcomeID]int)}

	width := rowWidth(rows, layout.QuestionRow)
	if w := rowWidth(rows, layout.OutcomeRow); w > width {
		width = w
	}

	for col := layout.FirstMarkCol; col <= width; col++ {
		label := cellAt(rows, layout.QuestionRow, col)
		if label == "" {
			continue
		}
		up := strings.ToUpper(label)
		mapped := cellAt(rows, layout.OutcomeRow, col)

		switch {
		case up == "CO":
			id, ok := parseOutcome(mapped)
			if !ok || !layout.Recognizes(id) {
				return nil, model.Errorf(model.KindMalformedMetadata,
					"%s: pre-totaled column %s maps to unrecognized outcome %q", kind, colName(col, layout.OutcomeRow), mapped)
			}
			if _, dup := hdr.totals[id]; dup {
				return nil, model.Errorf(model.KindMalformedMetadata,
					"%s: duplicate pre-totaled column for %s at %s", kind, id, colName(col, layout.QuestionRow))
			}
			hdr.totals[id] = col
		case strings.Contains(up, "TOTAL"):
			hdr.grandCol = col
		case isNumeric(label):
			id, ok := parseOutcome(mapped)
			if !ok {
				return nil, model.Errorf(model.KindMalformedMetadata,
					"%s: question column %s has no outcome mapping", kind, colName(col, layout.OutcomeRow))
			}
			if !layout.Recognizes(id) {
				return nil, model.Errorf(model.KindMalformedMetadata,
					"%s: question column %s maps to unrecognized outcome %q", kind, colName(col, layout.OutcomeRow), mapped)
			}
			hdr.mapping = append(hdr.mapping, model.QuestionOutcome{Question: label, Outcome: id})
			hdr.questions = append(hdr.questions, questionCol{col: col, label: label, outcome: id})
		}
	}

	if len(hdr.mapping) == 0 && len(hdr.totals) == 0 {
		return nil, model.Errorf(model.KindMalformedMetadata,
			"%s: no outcome-mapping header found at rows %d-%d", kind, layout.QuestionRow, layout.OutcomeRow)
	}
	return hdr, nil
}

func readMaxMarks(rows [][]string, kind model.InputKind, layout *schema.SheetLayout, hdr *header) (map[model.OutcomeID]float64, float64, error) {
	maxMarks := make(map[model.OutcomeID]float64, len(hdr.totals))
	for id, col := range hdr.totals {
		v, err := parseMark(cellAt(rows, layout.MaxMarksRow, col), kind, layout.MaxMarksRow, col)
		if err != nil {
			return nil, 0, err
		}
		maxMarks[id] = v
	}
	var totalMax float64
	if hdr.grandCol > 0 {
		v, err := parseMark(cellAt(rows, layout.MaxMarksRow, hdr.grandCol), kind, layout.MaxMarksRow, hdr.grandCol)
		if err != nil {
			return nil, 0, err
		}
		totalMax = v
	}
	return maxMarks, totalMax, nil
}

func readStudents(rows [][]string, kind model.InputKind, layout *schema.SheetLayout, hdr *header) ([]model.StudentMarkRow, error) {
	var students []model.StudentMarkRow

	for row := layout.DataStartRow; row <= len(rows); row++ {
		regNo := cellAt(rows, row, layout.RegNoCol)
		if regNo == "" {
			// Blank registration number ends the student table.
			break
		}

		student := model.StudentMarkRow{
			SerialNo:      len(students) + 1,
			RegNo:         regNo,
			Name:          cellAt(rows, row, layout.NameCol),
			OutcomeTotals: make(map[model.OutcomeID]float64),
			QuestionMarks: make(map[string]float64),
		}
		if n, err := strconv.Atoi(cellAt(rows, row, layout.SerialCol)); err == nil {
			student.SerialNo = n
		}

		for _, q := range hdr.questions {
			v, err := parseMark(cellAt(rows, row, q.col), kind, row, q.col)
			if err != nil {
				return nil, err
			}
			student.QuestionMarks[q.label] = v
		}

		for id, col := range hdr.totals {
			v, err := parseMark(cellAt(rows, row, col), kind, row, col)
			if err != nil {
				return nil, err
			}
			student.OutcomeTotals[id] = v
		}

		// Outcomes mapped by questions but lacking a pre-totaled column are
		// summed from the question marks and flagged as computed.
		for _, q := range hdr.questions {
			if _, ok := hdr.totals[q.outcome]; ok {
				continue
			}
			student.OutcomeTotals[q.outcome] += student.QuestionMarks[q.label]
			if student.Computed == nil {
				student.Computed = make(map[model.OutcomeID]bool)
			}
			student.Computed[q.outcome] = true
		}

		students = append(students, student)
	}

	return students, nil
}

// cellAt returns the trimmed value at 1-based (row, col); GetRows trims
// trailing blanks, so out-of-range reads are empty.
func cellAt(rows [][]string, row, col int) string {
	if row < 1 || row > len(rows) {
		return ""
	}
	r := rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return strings.TrimSpace(r[col-1])
}

func rowWidth(rows [][]string, row int) int {
	if row < 1 || row > len(rows) {
		return 0
	}
	return len(rows[row-1])
}

func parseMark(s string, kind model.InputKind, row, col int) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, model.Errorf(model.KindMalformedMarks,
			"%s: non-numeric mark %q at %s", kind, s, colName(col, row))
	}
	return v, nil
}

// parseOutcome accepts the forms instructors write in the mapping row:
// "1", "1.0", "CO1", "CO 1".
func parseOutcome(s string) (model.OutcomeID, bool) {
	up := strings.ToUpper(strings.TrimSpace(s))
	up = strings.TrimSpace(strings.TrimPrefix(up, "CO"))
	if up == "" {
		return "", false
	}
	n, err := strconv.ParseFloat(up, 64)
	if err != nil || n != float64(int(n)) || n < 1 {
		return "", false
	}
	return model.OutcomeID("CO" + strconv.Itoa(int(n))), true
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func colName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "?"
	}
	return name
}
