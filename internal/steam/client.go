package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Nlkomaru/vrc-playtime/internal/logger"
)

const (
	OwnedGamesURL = "http://api.steampowered.com/IPlayerService/GetOwnedGames/v1/"
	UserAgent     = "vrc-playtime/1.0 (github.com/Nlkomaru/vrc-playtime)"
	Timeout       = 30 * time.Second

	// VRChatAppID is the Steam application id whose playtime is reported.
	VRChatAppID = 438100

	maxErrorBody = 64 << 10
)

var (
	// ErrMissingCredentials is returned when the API key or Steam id is empty.
	ErrMissingCredentials = errors.New("missing Steam API credentials")
	// ErrGameNotFound is returned when the target app is not in the owned games list.
	ErrGameNotFound = errors.New("VRChat not found in owned games")
)

// StatusError reports a non-2xx response from the Steam Web API.
type StatusError struct {
	StatusCode int
	// Title is the <title> of an HTML error page, if Steam sent one.
	Title string
}

func (e *StatusError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("steam API error (status %d): %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("steam API error (status %d)", e.StatusCode)
}

var tracer = otel.Tracer("github.com/Nlkomaru/vrc-playtime/internal/steam")

// Client reads owned games for a single Steam account.
type Client struct {
	apiKey     string
	steamID    string
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Steam client. Credentials are validated per call so a
// misconfigured deployment still logs a line on every scheduled run.
func NewClient(apiKey, steamID string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		apiKey:  apiKey,
		steamID: steamID,
		baseURL: OwnedGamesURL,
		httpClient: &http.Client{
			Timeout: Timeout,
		},
		log: log,
	}
}

// NewClientWithURL creates a client that talks to a different GetOwnedGames
// endpoint, such as a proxy or a local stub.
func NewClientWithURL(baseURL, apiKey, steamID string, log *logger.Logger) *Client {
	client := NewClient(apiKey, steamID, log)
	if baseURL != "" {
		client.baseURL = baseURL
	}
	return client
}

// GetOwnedGames fetches the owned games list for the configured account.
func (c *Client) GetOwnedGames(ctx context.Context) (*OwnedGamesResponse, error) {
	if c.apiKey == "" || c.steamID == "" {
		return nil, ErrMissingCredentials
	}

	ctx, span := tracer.Start(ctx, "steam.GetOwnedGames")
	defer span.End()

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("steamid", c.steamID)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	logger.RecordTiming("steam.get_owned_games", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("fetching owned games: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Title:      errorPageTitle(resp),
		}
		span.SetStatus(codes.Error, statusErr.Error())
		return nil, statusErr
	}

	var result OwnedGamesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	span.SetAttributes(attribute.Int("steam.game_count", len(result.Response.Games)))
	return &result, nil
}

// FetchPlaytime returns the lifetime VRChat playtime in hours, rounded to two
// decimal places. Every failure is logged here and returned as an error; the
// caller only needs to know that no value is available.
func (c *Client) FetchPlaytime(ctx context.Context) (float64, error) {
	logger.IncrCounter("steam.fetches")

	owned, err := c.GetOwnedGames(ctx)
	if err != nil {
		logger.IncrCounter("steam.failures")
		var statusErr *StatusError
		switch {
		case errors.Is(err, ErrMissingCredentials):
			c.log.Error("Missing Steam API credentials", nil, err)
		case errors.As(err, &statusErr):
			fields := logger.Fields{"status": statusErr.StatusCode}
			if statusErr.Title != "" {
				fields["page_title"] = statusErr.Title
			}
			c.log.Error("Steam API request failed", fields, err)
		default:
			c.log.Error("Error getting VRChat playtime", nil, err)
		}
		return 0, err
	}

	game, ok := owned.FindGame(VRChatAppID)
	if !ok {
		logger.IncrCounter("steam.failures")
		c.log.Error("VRChat not found in owned games", logger.Fields{
			"app_id":     VRChatAppID,
			"game_count": len(owned.Response.Games),
		}, nil)
		return 0, ErrGameNotFound
	}

	hours := MinutesToHours(game.PlaytimeForever)
	c.log.Debug("Fetched VRChat playtime", logger.Fields{
		"minutes": game.PlaytimeForever,
		"hours":   hours,
	})
	return hours, nil
}

// MinutesToHours converts minutes to hours rounded half-up to two decimals.
func MinutesToHours(minutes int) float64 {
	hours, _ := decimal.NewFromInt(int64(minutes)).
		DivRound(decimal.NewFromInt(60), 2).
		Float64()
	return hours
}

// errorPageTitle pulls the <title> out of an HTML error page. Steam answers bad
// keys and outages with small HTML documents rather than JSON.
func errorPageTitle(resp *http.Response) string {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/html" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	return title
}
