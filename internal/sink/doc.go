// Package sink persists findings as they are reported.
//
// FileSink appends one line per finding to a plain text log. The file is
// opened in append mode and every write holds an advisory lock, so several
// scans may share one log without interleaving lines. Multi fans a record
// out to several sinks, typically the file log and the scan database.
package sink
