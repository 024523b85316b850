// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Seminary Management System Contributors

package roster

import (
	"encoding/csv"
	"io"

	"github.com/samber/oops"
)

// csvHeader fixes the export column order. Birth dates render in the
// human-facing DD/MM/YYYY layout.
var csvHeader = []string{"code", "full_name", "birth_date", "hometown", "parish", "diocese"}

// WriteCSV writes students as CSV with a header row.
func WriteCSV(w io.Writer, students []*Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return oops.Code("ROSTER_EXPORT_FAILED").
			With("operation", "write csv header").
			Wrap(err)
	}
	for _, s := range students {
		record := []string{
			s.Code,
			s.FullName,
			FormatBirthDate(s.BirthDate),
			s.Hometown,
			s.Parish,
			s.Diocese,
		}
		if err := cw.Write(record); err != nil {
			return oops.Code("ROSTER_EXPORT_FAILED").
				With("operation", "write csv record").
				With("code", s.Code).
				Wrap(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return oops.Code("ROSTER_EXPORT_FAILED").
			With("operation", "flush csv").
			Wrap(err)
	}
	return nil
}
