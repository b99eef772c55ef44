package subscriber

import (
	"database/sql"
	"strconv"
	"time"
)

// Subscriber is a campaign recipient. ID is the Telegram user id.
type Subscriber struct {
	ID         int64
	Username   sql.NullString
	FirstName  sql.NullString
	LastName   sql.NullString
	Source     sql.NullString // Acquisition source, kept from the first enrollment
	EnrolledAt time.Time      // Kept from the first enrollment
}

// LeadName is the human readable name used in reports.
func (s *Subscriber) LeadName() string {
	name := s.FirstName.String
	if s.LastName.Valid && s.LastName.String != "" {
		if name != "" {
			name += " "
		}
		name += s.LastName.String
	}
	if name != "" {
		return name
	}
	if s.Username.Valid && s.Username.String != "" {
		return s.Username.String
	}
	return "User_" + strconv.FormatInt(s.ID, 10)
}
