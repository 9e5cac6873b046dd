// Package notifier provides notification interfaces and implementations for playtime updates.
//
// The notifier package delivers the computed playtime to Discord, or prints the
// payload that would have been sent when running in dry-run mode.
package notifier
