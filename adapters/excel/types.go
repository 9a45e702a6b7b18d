package excel

// XLSXFilename is the name of the exported cleaned dataset workbook
const XLSXFilename = "cleaned_data.xlsx"

// DefaultSheet is the single sheet written and read
const DefaultSheet = "Sheet1"

// Table is a sheet read back as header + string cells
type Table struct {
	Headers []string
	Rows    [][]string
}
