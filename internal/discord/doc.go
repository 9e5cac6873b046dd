// Package discord provides Discord webhook integration for playtime notifications.
//
// The package builds embed payloads and posts them to an incoming webhook URL
// using plain net/http requests. A webhook URL embeds its own credentials, so no
// bot token or OAuth flow is involved.
package discord
