package sheet

import (
	"context"
	"strings"

	"link_checker/internal/models"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Workbook reads input tables from and writes reports to xlsx files.
// Every sheet of a workbook is read with the same range.
type Workbook struct {
	log logrus.FieldLogger
}

func NewWorkbook(log logrus.FieldLogger) *Workbook {
	return &Workbook{log: log}
}

func (w *Workbook) Load(ctx context.Context, unit string, r models.Range) ([]models.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Row < 1 || r.Column < 1 {
		return nil, eris.Wrapf(models.ErrInvalidArgument, "range starts at row %d, column %d", r.Row, r.Column)
	}

	f, err := excelize.OpenFile(unit)
	if err != nil {
		return nil, eris.Wrapf(err, "open workbook %s", unit)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]models.Sheet, 0, len(names))
	for _, name := range names {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, eris.Wrapf(err, "read sheet %s of %s", name, unit)
		}
		grid := cut(rows, r)
		w.log.WithFields(logrus.Fields{"unit": unit, "sheet": name, "rows": len(grid)}).Debug("sheet loaded")
		sheets = append(sheets, models.Sheet{Name: name, Rows: grid})
	}
	return sheets, nil
}

// Save copies unit to output with every sheet's grid written at (row, column).
// Empty cells are left untouched.
func (w *Workbook) Save(ctx context.Context, unit string, sheets []models.Sheet, row, column int, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row < 1 || column < 1 {
		return eris.Wrapf(models.ErrInvalidArgument, "output starts at row %d, column %d", row, column)
	}

	f, err := excelize.OpenFile(unit)
	if err != nil {
		return eris.Wrapf(err, "open workbook %s", unit)
	}
	defer f.Close()

	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return eris.Wrap(err, "create cell style")
	}

	for _, s := range sheets {
		for i, cells := range s.Rows {
			for j, value := range cells {
				if value == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(column+j, row+i)
				if err != nil {
					return eris.Wrapf(err, "address of row %d, column %d", row+i, column+j)
				}
				if err := f.SetCellValue(s.Name, cell, value); err != nil {
					return eris.Wrapf(err, "write %s!%s", s.Name, cell)
				}
				if strings.Contains(value, "\n") {
					if err := f.SetCellStyle(s.Name, cell, cell, wrap); err != nil {
						return eris.Wrapf(err, "style %s!%s", s.Name, cell)
					}
				}
			}
		}
	}

	if err := f.SaveAs(output); err != nil {
		return eris.Wrapf(err, "save workbook %s", output)
	}
	w.log.WithFields(logrus.Fields{"unit": unit, "output": output, "sheets": len(sheets)}).Debug("workbook saved")
	return nil
}

// cut returns the window of rows described by r, padded to a rectangle.
// A negative width or height extends to the last occupied cell.
func cut(rows [][]string, r models.Range) [][]string {
	top, left := r.Row-1, r.Column-1

	width := r.Width
	if width < 0 {
		width = 0
		for i := top; i < len(rows); i++ {
			if n := lastOccupied(rows[i], left, len(rows[i])) + 1 - left; n > width {
				width = n
			}
		}
	}

	height := r.Height
	if height < 0 {
		height = 0
		for i := top; i < len(rows); i++ {
			if lastOccupied(rows[i], left, left+width) >= 0 {
				height = i - top + 1
			}
		}
	}

	grid := make([][]string, height)
	for i := range grid {
		line := make([]string, width)
		if src := top + i; src < len(rows) {
			for j := range line {
				if c := left + j; c < len(rows[src]) {
					line[j] = rows[src][c]
				}
			}
		}
		grid[i] = line
	}
	return grid
}

// lastOccupied returns the index of the last non-blank cell in row[from:to], or -1.
func lastOccupied(row []string, from, to int) int {
	if to > len(row) {
		to = len(row)
	}
	for c := to - 1; c >= from; c-- {
		if strings.TrimSpace(row[c]) != "" {
			return c
		}
	}
	return -1
}
