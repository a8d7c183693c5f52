package transcript

import "time"

// Transcript is one answered question as stored in the chat history.
type Transcript struct {
	ID        int64
	Query     string
	Response  string
	CreatedAt time.Time
}
