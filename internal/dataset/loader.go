package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"math"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xuri/excelize/v2"
	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/types"
)

// Column names of the service-request datasets.
const (
	ColDepartment = "Department"
	ColDaysOpen   = "days_open"
	ColStatus     = "OnTime_Status"
	ColTitle      = "CASE_TITLE"
	ColSource     = "Source"
	ColCaseID     = "CASE_ENQUIRY_ID"
	ColQueue      = "QUEUE"
	ColX          = "wm_x"
	ColY          = "wm_y"
)

var (
	ErrNoHeader      = goerr.New("dataset has no header row")
	ErrMissingColumn = goerr.New("required column missing")
	ErrMalformedCell = goerr.New("malformed cell")
)

// Schema names the columns a dashboard needs. Other known columns are loaded
// when present.
type Schema struct {
	Name     string
	Required []string
}

var (
	DepartmentSchema = Schema{
		Name: "departments",
		Required: []string{
			ColDepartment, ColDaysOpen, ColStatus, ColTitle, ColSource,
			ColCaseID, ColQueue, ColX, ColY,
		},
	}
	CoordinateSchema = Schema{
		Name:     "requests",
		Required: []string{ColX, ColY},
	}
)

// Load reads a CSV or XLSX dataset from a local path or an http(s) URL and
// indexes it by its first column.
func Load(ctx context.Context, path string, schema Schema) (types.Table, error) {
	log := logger.New().Component("dataset.loader").WithField("path", path).WithField("schema", schema.Name)
	log.Info("loading dataset")

	rows, err := readRows(ctx, path)
	if err != nil {
		log.WithField("error", err.Error()).Error("read failed")
		return types.Table{}, err
	}
	table, err := Parse(rows, schema)
	if err != nil {
		log.WithField("error", err.Error()).Error("parse failed")
		return types.Table{}, err
	}
	log.WithField("rows", table.Len()).WithField("index", table.IndexName).Info("dataset loaded")
	return table, nil
}

func readRows(ctx context.Context, p string) ([][]string, error) {
	if isRemote(p) {
		body, err := Fetch(ctx, p)
		if err != nil {
			return nil, err
		}
		if isWorkbook(p) {
			f, err := excelize.OpenReader(bytes.NewReader(body))
			if err != nil {
				return nil, goerr.Wrap(err, "open workbook", goerr.V("url", p))
			}
			return workbookRows(f)
		}
		return csvRows(bytes.NewReader(body))
	}

	if isWorkbook(p) {
		f, err := excelize.OpenFile(p)
		if err != nil {
			return nil, goerr.Wrap(err, "open workbook", goerr.V("path", p))
		}
		return workbookRows(f)
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, goerr.Wrap(err, "open dataset", goerr.V("path", p))
	}
	defer file.Close()
	return csvRows(file)
}

func csvRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, goerr.Wrap(err, "read csv")
	}
	return rows, nil
}

func workbookRows(f *excelize.File) ([][]string, error) {
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, goerr.New("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, goerr.Wrap(err, "read rows", goerr.V("sheet", sheets[0]))
	}
	return rows, nil
}

// Parse turns raw rows (header first) into a table.
func Parse(rows [][]string, schema Schema) (types.Table, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return types.Table{}, ErrNoHeader
	}
	header := rows[0]
	indexName := strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff"))

	// first column is the index and never a data column
	idx := map[string]int{}
	for i := 1; i < len(header); i++ {
		name := strings.TrimSpace(header[i])
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	for _, col := range schema.Required {
		if _, ok := idx[col]; !ok {
			return types.Table{}, goerr.Wrap(ErrMissingColumn, "invalid header",
				goerr.V("column", col), goerr.V("schema", schema.Name))
		}
	}
	col := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}
	var (
		deptIdx   = col(ColDepartment)
		daysIdx   = col(ColDaysOpen)
		statusIdx = col(ColStatus)
		titleIdx  = col(ColTitle)
		sourceIdx = col(ColSource)
		caseIdx   = col(ColCaseID)
		queueIdx  = col(ColQueue)
		xIdx      = col(ColX)
		yIdx      = col(ColY)
	)

	table := types.Table{
		IndexName: indexName,
		Records:   make([]types.ServiceRequestRecord, 0, len(rows)-1),
	}
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if isBlank(r) {
			continue
		}
		line := i + 1
		rec := types.ServiceRequestRecord{
			Index:      cell(r, 0),
			Department: cell(r, deptIdx),
			Status:     cell(r, statusIdx),
			Title:      cell(r, titleIdx),
			Source:     cell(r, sourceIdx),
			CaseID:     cell(r, caseIdx),
			Queue:      cell(r, queueIdx),
		}
		var err error
		if rec.DaysOpen, err = optionalFloat(r, daysIdx, ColDaysOpen, line); err != nil {
			return types.Table{}, err
		}
		if rec.X, err = requiredFloat(r, xIdx, ColX, line); err != nil {
			return types.Table{}, err
		}
		if rec.Y, err = requiredFloat(r, yIdx, ColY, line); err != nil {
			return types.Table{}, err
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func cell(r []string, i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

func isBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// optionalFloat reads an empty or non-finite cell as NaN (missing).
func optionalFloat(r []string, i int, name string, line int) (float64, error) {
	if i < 0 {
		return math.NaN(), nil
	}
	s := cell(r, i)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := parseFloat(s, name, line)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return math.NaN(), nil
	}
	return v, nil
}

func requiredFloat(r []string, i int, name string, line int) (float64, error) {
	if i < 0 {
		return 0, nil
	}
	s := cell(r, i)
	if s == "" {
		return 0, goerr.Wrap(ErrMalformedCell, "empty numeric cell", goerr.V("column", name), goerr.V("line", line))
	}
	v, err := parseFloat(s, name, line)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, goerr.Wrap(ErrMalformedCell, "non-finite number",
			goerr.V("column", name), goerr.V("line", line), goerr.V("value", s))
	}
	return v, nil
}

func parseFloat(s, name string, line int) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, goerr.Wrap(ErrMalformedCell, "not a number",
			goerr.V("column", name), goerr.V("line", line), goerr.V("value", s))
	}
	return v, nil
}

func isRemote(p string) bool {
	l := strings.ToLower(p)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func isWorkbook(p string) bool {
	if isRemote(p) {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return strings.EqualFold(path.Ext(p), ".xlsx")
}
