package models

import "time"

// UserProfile is the subset of the osu! /me response the client shows.
type UserProfile struct {
	ID          int             `json:"id"`
	Username    string          `json:"username"`
	AvatarURL   string          `json:"avatar_url"`
	CoverURL    string          `json:"cover_url,omitempty"`
	CountryCode string          `json:"country_code"`
	IsSupporter bool            `json:"is_supporter"`
	JoinDate    time.Time       `json:"join_date"`
	Playmode    string          `json:"playmode"`
	Statistics  *UserStatistics `json:"statistics,omitempty"`
}

type UserStatistics struct {
	PP          float64 `json:"pp"`
	GlobalRank  int     `json:"global_rank,omitempty"`
	CountryRank int     `json:"country_rank,omitempty"`
	PlayCount   int     `json:"play_count"`
	HitAccuracy float64 `json:"hit_accuracy"`
}
