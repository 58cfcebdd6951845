package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/modelsite/modelsite-go/pkg/models"
)

// Extension returns the lower-cased text after the last dot of filename
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Load parses an uploaded dataset. The format is chosen from the filename
// extension alone: csv (comma), txt (tab), xls and xlsx (first sheet).
func Load(data []byte, filename string) (*Table, error) {
	var (
		records [][]string
		err     error
	)

	switch ext := Extension(filename); ext {
	case "csv":
		records, err = readDelimited(data, ',')
	case "txt":
		records, err = readDelimited(data, '\t')
	case "xlsx":
		records, err = readWorkbook(data)
	case "xls":
		records, err = readLegacyWorkbook(data)
	default:
		return nil, models.UnsupportedFormatError(ext)
	}
	if err != nil {
		return nil, models.InvalidDataError(fmt.Sprintf("Failed to read %s: %v", filename, err))
	}

	if len(records) == 0 {
		return NewTable(nil, nil), nil
	}
	return NewTable(records[0], records[1:]), nil
}

func readDelimited(data []byte, delimiter rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	return dropBlankRecords(records), nil
}

// readWorkbook reads the first sheet of an OOXML workbook
func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return dropBlankRecords(rows), nil
}

// readLegacyWorkbook reads the first sheet of a BIFF (.xls) workbook. Files
// saved as OOXML under an .xls name are handed to readWorkbook.
func readLegacyWorkbook(data []byte) (records [][]string, err error) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return readWorkbook(data)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("corrupt xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		record := make([]string, row.LastCol())
		for j := range record {
			record[j] = row.Col(j)
		}
		records = append(records, record)
	}
	return dropBlankRecords(records), nil
}

// dropBlankRecords removes rows with no non-blank cell
func dropBlankRecords(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		blank := true
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				blank = false
				break
			}
		}
		if !blank {
			out = append(out, rec)
		}
	}
	return out
}
