package steam

// Game is one entry of the owned games list. Playtime values are minutes.
type Game struct {
	AppID           int    `json:"appid"`
	Name            string `json:"name,omitempty"`
	PlaytimeForever int    `json:"playtime_forever"`
	Playtime2Weeks  int    `json:"playtime_2weeks,omitempty"`
	ImgIconURL      string `json:"img_icon_url,omitempty"`
	RTimeLastPlayed int64  `json:"rtime_last_played,omitempty"`
}

// OwnedGames is the inner object of a GetOwnedGames response.
// Games is absent when the profile's game details are private.
type OwnedGames struct {
	GameCount int    `json:"game_count"`
	Games     []Game `json:"games"`
}

// OwnedGamesResponse is the body returned by IPlayerService/GetOwnedGames.
type OwnedGamesResponse struct {
	Response OwnedGames `json:"response"`
}

// FindGame returns the first game with the given app id.
func (r *OwnedGamesResponse) FindGame(appID int) (Game, bool) {
	for _, g := range r.Response.Games {
		if g.AppID == appID {
			return g, true
		}
	}
	return Game{}, false
}
