// =============================================================================
// sepacetamol - Main Entry Point
// =============================================================================
//
// sepacetamol converts payroll spreadsheets into SEPA credit transfer files
// and DATEV booking batches.
//
// USAGE:
//   sepacetamol sepa <workbook>     - Payment workbook to pain.001 XML
//   sepacetamol datev <export>      - Personio export to DATEV EXTF CSV
//   sepacetamol process             - Convert every file in the input directory
//   sepacetamol serve               - Start the HTTP API
//   sepacetamol version             - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Conversion engine and adapters
//   - pkg/           : File handling utilities
//   - configs/       : Conversion profiles
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sepacetamol/cmd"
)

func main() {
	cmd.Execute()
}
