package loader

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	pipeerrors "reportcli/internal/errors"
)

// readExcel reads one sheet of a workbook into raw string rows. When
// no sheet is named, the first sheet in the workbook is used.
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pipeerrors.FormatError("loader", fmt.Sprintf("open workbook %s", path), err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, pipeerrors.FormatError("loader", fmt.Sprintf("workbook %s has no sheets", path), nil)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, pipeerrors.FormatError("loader", fmt.Sprintf("read sheet %q of %s", sheet, path), err)
	}
	return rows, nil
}
