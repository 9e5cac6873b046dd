package notifier

import (
	"context"
	"time"

	"github.com/Nlkomaru/vrc-playtime/internal/discord"
)

// DiscordNotifier posts playtime embeds to a Discord webhook
type DiscordNotifier struct {
	client *discord.Client
	now    func() time.Time
}

// NewDiscordNotifier creates a notifier backed by the given webhook client
func NewDiscordNotifier(client *discord.Client) *DiscordNotifier {
	return &DiscordNotifier{
		client: client,
		now:    time.Now,
	}
}

// Notify formats and sends one embed
func (n *DiscordNotifier) Notify(ctx context.Context, hours float64) error {
	return n.client.Send(ctx, discord.FormatPlaytimePayload(hours, n.now()))
}
