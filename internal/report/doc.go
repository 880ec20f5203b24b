// Package report renders the summary of a mirror run and the run history.
//
// Writers for different output formats:
//   - SimpleWriter: human-readable text for the terminal
//   - MarkdownWriter: Markdown for sharing, built with nao1215/markdown
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface and can be composed with
// MultiWriter.
package report
