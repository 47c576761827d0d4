package model

import "time"

// GoalUpdate is a dated progress note on a Goal. UpdateID 0 is reserved for
// the goal's initial auction and carries no note text.
type GoalUpdate struct {
	ID         int64     `json:"id"`
	GoalID     int64     `json:"goal_id"`
	Content    string    `json:"content"`
	ReportDate string    `json:"date"` // ISO calendar date the update reports as of
	CreatedAt  time.Time `json:"created_at"`
}

// IsInitialAuction reports whether this update id denotes the goal's
// opening auction, where agents have no prior debate to react to.
func (u *GoalUpdate) IsInitialAuction() bool {
	return u.ID == 0
}
