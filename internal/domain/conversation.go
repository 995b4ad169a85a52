package domain

import "time"

// Conversation groups messages. Membership is either an explicit member
// set or open (broadcast to all authenticated users). Core logic keys
// off the membership predicate, never off particular conversation ids.
type Conversation struct {
	ID             string    `bson:"_id" json:"id"`
	Members        []string  `bson:"members" json:"members"`
	Open           bool      `bson:"open" json:"open"`
	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// HasMember reports whether userID may read and write the conversation.
func (c *Conversation) HasMember(userID string) bool {
	if c.Open {
		return true
	}
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// ExpectedReaders returns the member set minus the sender: the users a
// message waits on for the all-read check. Open conversations have an
// unbounded reader set, reported as nil.
func (c *Conversation) ExpectedReaders(senderID string) []string {
	if c.Open {
		return nil
	}
	out := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m != senderID {
			out = append(out, m)
		}
	}
	return out
}
