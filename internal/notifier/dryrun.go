package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Nlkomaru/vrc-playtime/internal/discord"
)

// DryRunNotifier prints what would be posted without calling the webhook
type DryRunNotifier struct {
	out io.Writer
	now func() time.Time
}

// NewDryRunNotifier creates a new dry-run notifier writing to stdout
func NewDryRunNotifier() *DryRunNotifier {
	return &DryRunNotifier{out: os.Stdout, now: time.Now}
}

// Notify prints the webhook payload
func (n *DryRunNotifier) Notify(ctx context.Context, hours float64) error {
	payload := discord.FormatPlaytimePayload(hours, n.now())

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	fmt.Fprintln(n.out, "--- Discord webhook payload (dry run) ---")
	fmt.Fprintln(n.out, string(data))
	return nil
}
