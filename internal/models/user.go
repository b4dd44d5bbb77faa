// This file holds the derived values the API shows for a member. They are computed
// from the stored columns and never stored themselves.

package models

import (
	"math"
	"strings"
)

// Name returns the best available display name for a user, falling back from the chosen
// display name to "First Last", then to the first name alone, then to the part of the
// email address before the @.
func (u *User) Name() string {
	// A display name made only of spaces counts as unset.
	if u.DisplayName != nil && strings.TrimSpace(*u.DisplayName) != "" {
		return *u.DisplayName
	}
	first, last := deref(u.FirstName), deref(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	}
	// Every account has an email, so this always yields something.
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Avatar prefers an uploaded avatar over the picture cached from Google.
func (u *User) Avatar() *string {
	if u.AvatarURL != nil && *u.AvatarURL != "" {
		return u.AvatarURL
	}
	return u.GooglePictureURL
}

// GamesPlayed is the number of recorded bags games the user took part in.
func (u *User) GamesPlayed() int {
	return u.BagsWins + u.BagsLosses
}

// WinRatio is wins / (wins + losses), or 0 with no games played.
func (u *User) WinRatio() float64 {
	total := u.GamesPlayed()
	// Guard against dividing by zero for a member who has never played.
	if total == 0 {
		return 0
	}
	return float64(u.BagsWins) / float64(total)
}

// WinRate is WinRatio as a percentage rounded to one decimal place, the form the
// leaderboard shows.
func (u *User) WinRate() float64 {
	// 0.6667 becomes 66.7.
	return math.Round(u.WinRatio()*1000) / 10
}

// deref returns the trimmed value of s, or "" for nil.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
