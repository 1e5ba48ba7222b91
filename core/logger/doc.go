// Package logger is a standardized event logging framework for the shell.
//
// Events are stored as newline delimited JSON, one protobuf Struct per line,
// so they can be read back with ReadJSONLinesLog and summarized with Report.
package logger
