package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	pipeerrors "reportcli/internal/errors"
)

// readCSV reads the whole file into raw string rows. A UTF-8 BOM on
// the first header cell is stripped so Excel-exported CSVs load clean.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, pipeerrors.FormatError("loader", fmt.Sprintf("open %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged rows are padded during table build
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, pipeerrors.FormatError("loader", fmt.Sprintf("parse %s", path), err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\uFEFF")
	}
	return rows, nil
}
