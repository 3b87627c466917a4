package store

// MessageSender tells who wrote a conversation message.
type MessageSender string

const (
	SenderUser MessageSender = "user"
	SenderAI   MessageSender = "ai"
)

// ConversationMemory is the rolling summary kept for one (user, persona) pair.
type ConversationMemory struct {
	ID        int32
	UserID    int32
	PersonaID int32
	Summary   string
	CreatedTs int64
	UpdatedTs int64
}

// UpdateConversationMemory extends a stored summary. The driver merges Addition onto the
// row as read inside its transaction, so concurrent turns of one conversation both land.
type UpdateConversationMemory struct {
	ID        int32
	Addition  string
	MaxRunes  int
	UpdatedTs int64

	// Summary receives the stored summary once the write is done.
	Summary string
}

// Merge returns current extended with the addition and capped to MaxRunes.
func (u *UpdateConversationMemory) Merge(current string) string {
	return CapSummary(MergeSummary(current, u.Addition), u.MaxRunes)
}

// ConversationMessage is an immutable entry of the conversation log.
type ConversationMessage struct {
	ID     int32
	UID    string
	UserID int32
	// PersonaID is zero once the persona row has been removed.
	PersonaID int32
	Sender    MessageSender
	Message   string
	CreatedTs int64
}

type FindConversationMessage struct {
	UserID    *int32
	PersonaID *int32
	// ExcludeEmpty skips messages whose text is blank.
	ExcludeEmpty bool
	// NewestFirst reverses the creation order.
	NewestFirst bool
	Limit       int
	Offset      int
}

// ConversationMessagePage is one page of a conversation log, oldest message first.
type ConversationMessagePage struct {
	Count      int
	NextOffset *int
	Messages   []*ConversationMessage
}
