package export

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"wellstep/internal/models"
)

const maxSheetName = 31

// WriteResampledXLSX writes one worksheet per well: DATE followed by the
// series fields. Missing readings are left blank.
func WriteResampledXLSX(w io.Writer, all []*models.ResampledSeries) error {
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(all))
	for i, s := range all {
		name := sheetName(s.Well, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}

		header := make([]interface{}, 0, len(s.Fields)+1)
		header = append(header, "DATE")
		for _, field := range s.Fields {
			header = append(header, field)
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", name, err)
		}

		for r, ts := range s.Timestamps {
			row := make([]interface{}, 0, len(s.Fields)+1)
			row = append(row, formatTime(ts))
			for _, field := range s.Fields {
				v := s.Values[field][r]
				if v.IsMissing() {
					row = append(row, nil)
					continue
				}
				row = append(row, float64(v))
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", r+2, name, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetName makes a valid, unique worksheet name for a well
// truncateRunes cuts s to at most n characters, the unit excelize counts sheet names in
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func sheetName(well string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(well))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "well"
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
