// Package internaldefs holds the metric names and bucket bounds exporters
// share, so every exporter publishes identical series.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
