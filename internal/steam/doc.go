// Package steam provides a minimal Steam Web API client for reading playtime.
//
// Only IPlayerService/GetOwnedGames is used. The client looks up a single
// application (VRChat) in the owned games list of one account and converts its
// lifetime playtime from minutes to hours rounded to two decimal places.
package steam
