package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ppplay-api/internal/apperrors"
	"ppplay-api/internal/database"
	"ppplay-api/internal/utils"
)

// LeaderboardType selects the ranking order
type LeaderboardType string

const (
	LeaderboardPoints  LeaderboardType = "points"
	LeaderboardWinRate LeaderboardType = "winRate"
	LeaderboardStreak  LeaderboardType = "streak"

	minVotesForWinRate = 10
)

// RankingEntry is one row of a leaderboard
type RankingEntry struct {
	Rank            int64   `json:"rank"`
	UserID          uint    `json:"userId"`
	Nickname        string  `json:"nickname"`
	AvatarURL       *string `json:"avatarUrl"`
	TotalPoints     int64   `json:"totalPoints"`
	TotalVotes      int     `json:"totalVotes"`
	CorrectVotes    int     `json:"correctVotes"`
	WinRate         int64   `json:"winRate"`
	ConsecutiveDays int     `json:"consecutiveDays"`
	IsCurrentUser   bool    `json:"isCurrentUser"`
}

// Leaderboard is a ranking plus the caller's own position
type Leaderboard struct {
	Type      LeaderboardType `json:"type"`
	Rankings  []RankingEntry  `json:"rankings"`
	MyRanking *RankingEntry   `json:"myRanking"`
	Total     int             `json:"total"`
}

// LeaderboardService ranks points accounts
type LeaderboardService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewLeaderboardService(db *gorm.DB, loc *time.Location) *LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{db: db, loc: loc, now: time.Now}
}

// streakCutoff is the start of yesterday in local time. A streak whose
// last check-in is older than that is already broken.
func (s *LeaderboardService) streakCutoff() time.Time {
	local := s.now().In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, s.loc).UTC()
}

type rankingRow struct {
	UserID          uint
	Nickname        *string
	AvatarURL       *string
	TotalPoints     int64
	TotalVotes      int
	CorrectVotes    int
	ConsecutiveDays int
	LastLoginAt     *time.Time
}

func (r rankingRow) entry(rank int64, currentUser uint, streakCutoff time.Time) RankingEntry {
	name := utils.FallbackNickname(r.UserID)
	if r.Nickname != nil && *r.Nickname != "" {
		name = *r.Nickname
	}
	streak := r.ConsecutiveDays
	if r.LastLoginAt == nil || r.LastLoginAt.Before(streakCutoff) {
		streak = 0
	}
	return RankingEntry{
		Rank:            rank,
		UserID:          r.UserID,
		Nickname:        name,
		AvatarURL:       r.AvatarURL,
		TotalPoints:     r.TotalPoints,
		TotalVotes:      r.TotalVotes,
		CorrectVotes:    r.CorrectVotes,
		WinRate:         WinRate(r.CorrectVotes, r.TotalVotes),
		ConsecutiveDays: streak,
		IsCurrentUser:   currentUser != 0 && r.UserID == currentUser,
	}
}

func (s *LeaderboardService) baseQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table("points_accounts").
		Select("points_accounts.user_id, users.nickname, users.avatar_url, points_accounts.total_points, " +
			"points_accounts.total_votes, points_accounts.correct_votes, points_accounts.consecutive_days, " +
			"points_accounts.last_login_at").
		Joins("LEFT JOIN users ON users.id = points_accounts.user_id")
}

// Get returns the top limit entries for the ranking type. currentUser may be 0.
func (s *LeaderboardService) Get(ctx context.Context, kind LeaderboardType, limit int, currentUser uint) (*Leaderboard, error) {
	if kind == "" {
		kind = LeaderboardPoints
	}
	limit, _ = clampPage(limit, 0, 50, 100)
	cutoff := s.streakCutoff()

	query := s.baseQuery(ctx)
	switch kind {
	case LeaderboardPoints:
		query = query.Order("points_accounts.total_points DESC")
	case LeaderboardWinRate:
		query = query.Where("points_accounts.total_votes >= ?", minVotesForWinRate).
			Order("points_accounts.correct_votes DESC").
			Order("points_accounts.total_votes ASC")
	case LeaderboardStreak:
		query = query.Where("points_accounts.consecutive_days > 0 AND points_accounts.last_login_at >= ?", cutoff).
			Order("points_accounts.consecutive_days DESC")
	default:
		return nil, apperrors.Validation("type must be points, winRate or streak")
	}

	var rows []rankingRow
	if err := query.Order("points_accounts.user_id ASC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	board := &Leaderboard{Type: kind, Rankings: make([]RankingEntry, 0, len(rows))}
	for i, r := range rows {
		entry := r.entry(int64(i+1), currentUser, cutoff)
		board.Rankings = append(board.Rankings, entry)
		if entry.IsCurrentUser {
			mine := entry
			board.MyRanking = &mine
		}
	}
	board.Total = len(board.Rankings)

	if currentUser != 0 && board.MyRanking == nil {
		mine, err := s.MyRanking(ctx, currentUser)
		if err != nil {
			return nil, err
		}
		board.MyRanking = mine
	}
	return board, nil
}

// MyRanking places the user by total points: one more than the number of
// accounts ahead of them. Returns nil when the user has no account.
func (s *LeaderboardService) MyRanking(ctx context.Context, userID uint) (*RankingEntry, error) {
	var row rankingRow
	err := s.baseQuery(ctx).Where("points_accounts.user_id = ?", userID).Take(&row).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load ranking: %w", err)
	}

	var ahead int64
	if err := s.db.WithContext(ctx).Table("points_accounts").
		Where("total_points > ?", row.TotalPoints).
		Count(&ahead).Error; err != nil {
		return nil, fmt.Errorf("failed to count ranking: %w", err)
	}

	entry := row.entry(ahead+1, userID, s.streakCutoff())
	return &entry, nil
}
