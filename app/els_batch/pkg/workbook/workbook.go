// Package workbook 读取新发行产品清单表格的第一个工作表。
package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

// 固定列位置
const (
	colIssuer            = 1
	colCreditRating      = 2
	colName              = 3
	colUnderlyings       = 4
	colIssuedDate        = 5
	colMaturityDate      = 6
	colYield             = 7
	colMaximumLossRate   = 8
	colSubscriptionStart = 9
	colSubscriptionEnd   = 10
	colFullTerms         = 11
	colLink              = 13
	colRemarks           = 15
)

// Read 读取表格中的数据行，第 0 行为表头
func Read(path string) ([]model.Row, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrInputMissing, path)
		}
		return nil, err
	}

	read, err := readerFor(path)
	if err != nil {
		return nil, err
	}
	raw, err := read(path)
	if err != nil {
		return nil, err
	}

	rows := Rows(raw)
	logger.Log.Infof("表格行数 %d", len(raw))
	return rows, nil
}

func readerFor(path string) (func(string) ([][]string, error), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX, nil
	case ".xls":
		return readXLS, nil
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrFormatUnsupported, path)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx %s has no sheet", path)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("xls %s has no sheet", path)
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// Rows 把原始单元格映射为数据行，跳过表头与空行
func Rows(raw [][]string) []model.Row {
	var out []model.Row
	for i := 1; i < len(raw); i++ {
		cells := raw[i]
		if strings.TrimSpace(cell(cells, colName)) == "" {
			continue
		}
		out = append(out, model.Row{
			Index:             i + 1,
			Issuer:            cell(cells, colIssuer),
			CreditRating:      cell(cells, colCreditRating),
			Name:              cell(cells, colName),
			Underlyings:       cell(cells, colUnderlyings),
			IssuedDate:        cell(cells, colIssuedDate),
			MaturityDate:      cell(cells, colMaturityDate),
			Yield:             cell(cells, colYield),
			MaximumLossRate:   cell(cells, colMaximumLossRate),
			SubscriptionStart: cell(cells, colSubscriptionStart),
			SubscriptionEnd:   cell(cells, colSubscriptionEnd),
			FullTerms:         cell(cells, colFullTerms),
			Link:              cell(cells, colLink),
			Remarks:           cell(cells, colRemarks),
		})
	}
	return out
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
