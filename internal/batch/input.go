package batch

import (
	"almaconnector/internal/input"
	"almaconnector/internal/workflow"
)

// ReadImportRows loads the import CSV (ac_number, filename, access, marcid).
func ReadImportRows(path string) ([]workflow.ImportRow, error) {
	rows, err := input.ReadCSVFile(path, "ac_number", "filename", "access", "marcid")
	if err != nil {
		return nil, err
	}

	out := make([]workflow.ImportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, workflow.ImportRow{
			ACNumber: row["ac_number"],
			Filename: row["filename"],
			Access:   row["access"],
			MarcID:   row["marcid"],
		})
	}
	return out, nil
}

// ReadURLUpdates loads the url update CSV (mms_id, new_url).
func ReadURLUpdates(path string) ([]URLUpdate, error) {
	rows, err := input.ReadCSVFile(path, "mms_id", "new_url")
	if err != nil {
		return nil, err
	}

	out := make([]URLUpdate, 0, len(rows))
	for _, row := range rows {
		out = append(out, URLUpdate{MMSID: row["mms_id"], URL: row["new_url"]})
	}
	return out, nil
}
