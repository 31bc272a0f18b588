package excel

// ExcelData is one sheet or CSV file as a header row and text cells.
type ExcelData struct {
	Headers []string   // Column headers
	Rows    [][]string // Data rows, possibly shorter than Headers
}

// Column returns the cells of the named column, or false when absent.
func (d *ExcelData) Column(name string) ([]string, bool) {
	for j, h := range d.Headers {
		if h != name {
			continue
		}
		out := make([]string, len(d.Rows))
		for i, row := range d.Rows {
			if j < len(row) {
				out[i] = row[j]
			}
		}
		return out, true
	}
	return nil, false
}
