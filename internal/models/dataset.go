package models

import "time"

// Row is one record of an uploaded dataset, keyed by column name.
// Values are scalars: string, float64 or bool.
type Row map[string]any

// Dataset is an ordered set of rows parsed from a user-supplied or static file.
type Dataset struct {
	Name     string    `json:"name"`
	Rows     []Row     `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Message is one turn of a chat session.
type Message struct {
	Sender string    `json:"sender"` // "user" or "bot"
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Session holds an uploaded dataset for the duration of one chat session.
type Session struct {
	ID                 string    `json:"id"`
	Description        string    `json:"description"`
	SystemInstruction  string    `json:"system_instruction,omitempty"`
	SuggestedQuestions []string  `json:"suggested_questions,omitempty"`
	Dataset            *Dataset  `json:"-"`
	History            []Message `json:"history"`
	CreatedAt          time.Time `json:"created_at"`
}

// Tab is a static operations tab backed by a data file.
type Tab struct {
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	Welcome            string   `json:"welcome"`
	SuggestedQuestions []string `json:"suggested_questions"`
	Rows               int      `json:"rows"`
	Ready              bool     `json:"ready"`
	Error              string   `json:"error,omitempty"`
}
