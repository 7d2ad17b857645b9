// Package cli implements the pfcatalog-export command line tool.
//
// The tool runs the catalog in-process against the configured environments,
// without the HTTP server.
//
// environments: list configured environment names
//
//	pfcatalog-export environments
//
// list: print normalized records as JSON
//
//	pfcatalog-export list --env qa --dataset clients --filter status:active
//
// export: write an xlsx workbook, once or on a cron schedule
//
//	pfcatalog-export export --env qa --dataset connections
//	pfcatalog-export export --env qa --dataset connections --output /reports/saml.xlsx --schedule "0 6 * * *"
//
// status: populate and report reference tables
//
//	pfcatalog-export status --env qa --populate
package cli
