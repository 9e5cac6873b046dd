package discord

import (
	"fmt"
	"strconv"
	"time"
)

const (
	PlaytimeTitle       = "🎮 VRChat Playtime Update"
	PlaytimeDescription = "Steamから取得したVRChatのプレイ時間です"
	PlaytimeColor       = 0x00ff00

	TotalPlaytimeLabel = "📊 総プレイ時間"
	UpdatedAtLabel     = "⏰ 更新時刻"

	// timestampLayout matches JavaScript's Date.toISOString, which Discord
	// documents for embed timestamps.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

var tokyo = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// FormatPlaytimePayload builds the webhook payload announcing the total playtime.
func FormatPlaytimePayload(hours float64, now time.Time) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:       PlaytimeTitle,
				Description: PlaytimeDescription,
				Color:       PlaytimeColor,
				Fields: []EmbedField{
					{
						Name:   TotalPlaytimeLabel,
						Value:  FormatHours(hours),
						Inline: true,
					},
					{
						Name:   UpdatedAtLabel,
						Value:  FormatJST(now),
						Inline: true,
					},
				},
				Timestamp: FormatTimestamp(now),
			},
		},
	}
}

// FormatHours renders hours in the shortest decimal form followed by the
// Japanese unit, e.g. "125.5 時間".
func FormatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64) + " 時間"
}

// FormatJST renders t in Asia/Tokyo the way the ja-JP locale does by default:
// "2026/1/5 9:05:03". Month, day and hour are not zero padded.
func FormatJST(t time.Time) string {
	t = t.In(tokyo)
	return fmt.Sprintf("%d/%d/%d %d:%02d:%02d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// FormatTimestamp renders t as UTC RFC 3339 with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
