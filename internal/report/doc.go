// Package report renders scan reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown for sharing scan results
//
// Writers implement the Writer interface and can be combined with
// MultiWriter to render one report to several destinations.
package report
