package google

import "strings"

// a1Range builds "Sheet!A1" style references, quoting sheet names as needed.
func a1Range(sheet, cells string) string {
	if strings.ContainsAny(sheet, " '!") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + cells
}
