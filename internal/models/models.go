package models

import "time"

// User mirrors a row of the users table.
//
// PasswordHash is the bcrypt hash of the credential — the cleartext password
// never touches a row. The field is excluded from JSON so a User can never
// leak its hash even if someone serializes it directly; API responses go
// through Profile() anyway.
//
// LastSeen is a pointer because the column is nullable: a user who has never
// logged in has no last-seen timestamp, and the API contract wants a JSON
// null there, not a zero time.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	DisplayName  string     `json:"displayName"`
	Role         string     `json:"role"`
	IsOnline     bool       `json:"isOnline"`
	LastSeen     *time.Time `json:"lastSeen"`
}

// Profile is the public-facing user shape returned by login, the directory
// listing, and session introspection. Same fields as User minus the hash.
// time.Time marshals to RFC3339, which satisfies the ISO-8601 contract;
// a nil LastSeen marshals to null.
type Profile struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	IsOnline    bool       `json:"isOnline"`
	LastSeen    *time.Time `json:"lastSeen"`
}

// Profile strips the credential hash off a User.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

// Message mirrors a row of the messages table. The body is stored once;
// recipients hang off it as message_recipients rows. A message is immutable
// after creation.
//
// IsBroadcast is informational only — it does not change how the message is
// stored or fanned out.
type Message struct {
	ID          int64     `json:"id"`
	FromUserID  int64     `json:"fromUserId"`
	Content     string    `json:"content"`
	IsBroadcast bool      `json:"isBroadcast"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConversationRow is one row of the conversation query: a (message, recipient)
// pair joined with the author's name columns. A message sent to three people
// comes back as three rows that differ only in ToUserID. The API layer
// collapses these into ConversationEntry values.
//
// DisplayName is a pointer because the column is nullable; the fallback to
// FirstName happens during the collapse.
type ConversationRow struct {
	MessageID   int64
	FromUserID  int64
	Content     string
	IsBroadcast bool
	CreatedAt   *time.Time
	FirstName   string
	DisplayName *string
	ToUserID    int64
}

// ConversationEntry is the per-viewer reconstructed view of one message:
// the message fields plus the aggregated recipient list. Exactly one entry
// exists per message id regardless of how many recipients it had.
type ConversationEntry struct {
	ID           int64      `json:"id"`
	FromUserID   int64      `json:"fromUserId"`
	Content      string     `json:"content"`
	IsBroadcast  bool       `json:"isBroadcast"`
	Timestamp    *time.Time `json:"timestamp"`
	FromUserName string     `json:"fromUserName"`
	To           []int64    `json:"to"`
}
