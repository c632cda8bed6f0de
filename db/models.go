package db

import "time"

// User mirrors a workspace member. IDs are Slack's opaque identifiers;
// rows are refreshed in place on every sync and never deleted.
type User struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	RealName string
	Timezone string
}

// Channel mirrors one conversation. Created is nil when Slack omits the
// creation time.
type Channel struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	IsPrivate bool   `gorm:"not null"`
	Created   *time.Time
}

// Message mirrors one history or thread-reply entry. The Slack timestamp
// string is the primary key; it is unique and sorts chronologically.
type Message struct {
	TS           string `gorm:"column:ts;primaryKey"`
	ChannelID    string `gorm:"index;not null"`
	UserID       string `gorm:"index"`
	Text         string `gorm:"type:text"`
	ThreadTS     string `gorm:"column:thread_ts;index"`
	ParentUserID string
	Subtype      string
}

// Reaction is one (message, emoji, reacting user) tuple. Count is the
// aggregate total for the emoji, repeated on every row of the group. The
// integer key is synthetic; rows are replaced wholesale per message on
// re-sync rather than upserted.
type Reaction struct {
	ID        uint   `gorm:"primaryKey"`
	MessageTS string `gorm:"column:message_ts;index;not null"`
	Name      string `gorm:"not null"`
	Count     int    `gorm:"not null"`
	UserID    string
}
