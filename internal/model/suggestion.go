package model

import "time"

// Suggestion is one user's survey answers together with the generated
// recommendation text. The primary key is (UserID, EntryNumber): entry
// numbers are per-user sequences starting at 1, not global identifiers.
type Suggestion struct {
	UserID          uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	EntryNumber     int       `gorm:"primaryKey;autoIncrement:false" json:"entry_number"`
	Suggestions     string    `gorm:"type:text;not null" json:"suggestions"`
	ExternalAPIData string    `gorm:"column:external_api_data;type:text" json:"external_api_data"`
	CreatedAt       time.Time `json:"created_at"`

	// Answers lives in the suggestion_answers side table and is loaded and
	// written by the repository alongside the row.
	Answers map[string]string `gorm:"-" json:"answers"`
}

// SuggestionAnswer is one key/value pair of a suggestion's answer survey,
// joined to its suggestion by the same composite key.
type SuggestionAnswer struct {
	UserID      uint   `gorm:"primaryKey;autoIncrement:false"`
	EntryNumber int    `gorm:"primaryKey;autoIncrement:false"`
	AnswerKey   string `gorm:"primaryKey;size:191"`
	AnswerValue string `gorm:"type:text"`
}
