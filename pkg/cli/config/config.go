// Package config holds process-wide CLI settings shared by all commands.
package config

// Output formats accepted by the global --output flag.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

var outputFormat = OutputTable

// SetOutputFormat selects the output format for all commands. Unknown values
// fall back to the table format.
func SetOutputFormat(format string) {
	switch format {
	case OutputTable, OutputJSON:
		outputFormat = format
	default:
		outputFormat = OutputTable
	}
}

// OutputFormat returns the currently selected output format.
func OutputFormat() string {
	return outputFormat
}

// JSONOutput reports whether commands should emit structured JSON instead of
// human-readable tables.
func JSONOutput() bool {
	return outputFormat == OutputJSON
}
