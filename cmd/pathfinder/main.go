// Package main provides the entry point for the pathfinder CLI.
//
// pathfinder enumerates every fixed-length path over an alphabet against one
// origin and reports the paths whose responses differ from the origin's
// not-found page.
//
// Usage:
//
//	pathfinder scan https://example.com --length 4 --workers 8
//	pathfinder scan https://example.com --start mzaa
//	pathfinder stop
//
// See --help for all available options.
package main

// main is the entry point for pathfinder.
func main() {
	Execute()
}
