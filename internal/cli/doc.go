// Package cli implements the command-line interface for vrc-playtime.
//
// The cli package provides the Cobra-based CLI. "serve" runs the cron schedule
// together with the diagnostic HTTP endpoint, "run" performs a single check for
// use under an external scheduler, and "version" prints the build version.
// It coordinates the config, steam, discord, notifier and job packages.
package cli
