package store

import "time"

const (
	SourceAPI  = "api"
	SourceSMTP = "smtp"
	SourceMbox = "mbox"
)

type Conversation struct {
	ID        string
	Subject   string
	Sender    string
	Plain     string
	Raw       []byte
	Source    string
	Parsed    bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Message struct {
	ID             int64
	ConversationID string
	Position       int
	Body           string
	Sent           string
	Sender         string
	Headers        []Header
}

type Header struct {
	ID        int64
	MessageID int64
	Field     string
	Value     string
}

// ParsedConversation is what a parse job writes back for a conversation.
// Messages are in chronological order.
type ParsedConversation struct {
	Subject  string
	Sender   string
	Messages []Message
}

type conversationRow struct {
	ID        string `db:"id"`
	Subject   string `db:"subject"`
	Sender    string `db:"sender"`
	Plain     string `db:"plain"`
	Raw       []byte `db:"raw"`
	Source    string `db:"source"`
	Parsed    bool   `db:"parsed"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

func (r conversationRow) toConversation() Conversation {
	c := Conversation{
		ID:        r.ID,
		Subject:   r.Subject,
		Sender:    r.Sender,
		Plain:     r.Plain,
		Raw:       r.Raw,
		Source:    r.Source,
		Parsed:    r.Parsed,
		CreatedAt: time.Unix(r.CreatedAt, 0),
	}
	if r.ExpiresAt > 0 {
		c.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	}
	return c
}

type messageRow struct {
	ID             int64  `db:"id"`
	ConversationID string `db:"conversation_id"`
	Position       int    `db:"position"`
	Body           string `db:"body"`
	Sent           string `db:"sent"`
	Sender         string `db:"sender"`
}

type headerRow struct {
	ID        int64  `db:"id"`
	MessageID int64  `db:"message_id"`
	Field     string `db:"field"`
	Value     string `db:"value"`
}
