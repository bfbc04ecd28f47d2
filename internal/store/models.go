package store

import "time"

// GORM models used for persistence. Column and table names mirror the
// original chat schema so an existing chat_app.db keeps working.

// User is a registered chat identity. Usernames arrive as bare strings from
// clients; the row is upserted on first connect and never consulted on the
// message hot path.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:120;uniqueIndex;not null" json:"username"`
	Password string `gorm:"size:120" json:"-"`
}

func (User) TableName() string { return "users" }

// Message is one persisted chat message. Body and FilePath may both be empty;
// an empty message is permitted. Rows are immutable once written and are
// never deleted by the server.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Sender    string    `gorm:"size:120;not null;index:idx_messages_pair" json:"sender"`
	Receiver  string    `gorm:"size:120;not null;index:idx_messages_pair" json:"receiver"`
	Body      string    `gorm:"column:message;size:500" json:"message,omitempty"`
	FilePath  string    `gorm:"column:file_path;size:500" json:"file_path,omitempty"`
	Timestamp time.Time `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

// BlockedUser is one directional suppression rule: Blocker refuses messages
// from Blocked. The composite primary key lets a user be blocked by any
// number of others.
type BlockedUser struct {
	Blocker   string    `gorm:"size:120;primaryKey" json:"blocker"`
	Blocked   string    `gorm:"size:120;primaryKey" json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

func (BlockedUser) TableName() string { return "blocked_users" }
