package model

import (
	"strings"
	"time"
)

// UserKey derives the database node key for an email address by replacing
// every '.' with '_' ('.' is not allowed in a node path segment).
//
// This encoding is lossy: "a.b@x.com" and "a_b@x.com" map to the same key
// and are therefore treated as the same account. That is the panel's
// long-standing behavior and existing data is keyed this way, so the
// encoding is kept as-is rather than switching to a hash.
func UserKey(email string) string {
	return strings.ReplaceAll(email, ".", "_")
}

// Summary is the dashboard/summary node. TotalAvailable is the withdrawable
// balance and must never go negative; TotalWithdrawal is informational.
type Summary struct {
	DailyIncome     float64 `json:"dailyIncome"`
	TotalEarnings   float64 `json:"totalEarnings"`
	TotalWithdrawal float64 `json:"totalWithdrawal"`
	TotalAvailable  float64 `json:"totalAvailable"`
}

// DailyStat is one day of the dashboard's earnings history.
type DailyStat struct {
	Impressions int     `json:"impressions"`
	Earnings    float64 `json:"earnings"`
	CPM         float64 `json:"cpm"`
}

// Dashboard is the per-user dashboard node.
type Dashboard struct {
	Summary    Summary              `json:"summary"`
	DailyStats map[string]DailyStat `json:"dailyStats"`
}

// ProfileSettings holds the extra per-user UI settings.
type ProfileSettings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

// Profile is the per-user profile node.
type Profile struct {
	PasswordLastChanged string          `json:"passwordLastChanged"`
	LastLogin           string          `json:"lastLogin"`
	Email               string          `json:"email"`
	ReferralPercent     float64         `json:"referralPercent"`
	ExtraSettings       ProfileSettings `json:"extraSettings"`
}

// User is the full per-user record stored under child_panel/{userKey}.
//
// PasswordHash is a bcrypt hash. The tag is needed so the hash persists to
// the store; handlers must respond with PublicView, never the raw record.
type User struct {
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	PasswordHash    string           `json:"passwordHash"`
	LastLogin       string           `json:"lastLogin"`
	ReferralCode    string           `json:"referralCode"`
	ReferredBy      string           `json:"referredBy"`
	ReferralPercent float64          `json:"referralPercent"`
	Dashboard       Dashboard        `json:"dashboard"`
	Links           map[string]Link  `json:"links"`
	Withdrawals     WithdrawalGroups `json:"withdrawals"`
	Support         map[string]any   `json:"support"`
	Profile         Profile          `json:"profile"`
	Notifications   map[string]any   `json:"notifications"`
}

// PublicView is the subset of the user record safe to return over HTTP.
type PublicView struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	LastLogin    string `json:"lastLogin"`
	ReferralCode string `json:"referralCode"`
}

// Public returns the HTTP-safe view of the record.
func (u *User) Public() PublicView {
	return PublicView{
		Name:         u.Name,
		Email:        u.Email,
		LastLogin:    u.LastLogin,
		ReferralCode: u.ReferralCode,
	}
}

// historyDays is how many days of dailyStats a fresh account is seeded with.
const historyDays = 10

// NewUser builds the record seeded for a freshly registered account:
// zeroed summary, the last 10 days of dailyStats, an EMPTY links map (links
// are dense-numbered from link1 and an empty map keeps that invariant from
// day one), and empty withdrawal collections. referredBy is the referral
// code entered at signup, "00000" when none.
func NewUser(name, email, passwordHash, referredBy string, now time.Time) *User {
	if referredBy == "" {
		referredBy = "00000"
	}
	nowStr := now.UTC().Format(time.RFC3339)

	stats := make(map[string]DailyStat, historyDays)
	for i := 0; i < historyDays; i++ {
		day := now.AddDate(0, 0, -(historyDays - i - 1)).Format("2006-01-02")
		stats[day] = DailyStat{}
	}

	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		LastLogin:    nowStr,
		ReferralCode: "00000",
		ReferredBy:   referredBy,
		Dashboard: Dashboard{
			DailyStats: stats,
		},
		Links: map[string]Link{},
		Withdrawals: WithdrawalGroups{
			Pending:   map[string]Withdrawal{},
			Cancelled: map[string]Withdrawal{},
			History:   map[string]Withdrawal{},
		},
		Support: map[string]any{},
		Profile: Profile{
			PasswordLastChanged: now.Format("2006-01-02"),
			LastLogin:           nowStr,
			Email:               email,
		},
		Notifications: map[string]any{},
	}
}
