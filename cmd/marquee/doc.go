// Package main hosts the marquee CLI.
//
// Each batch job is one subcommand meant to be triggered by cron or a
// similar scheduler. Commands load configuration, open the catalog, run a
// single pass and print the pass summary as a table or, with --json, as JSON.
package main
