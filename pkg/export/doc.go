// Package export writes normalized records as spreadsheet workbooks, one
// header row of column names followed by one row per record.
package export
