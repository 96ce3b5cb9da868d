package chat

// TypingIndicator is an ephemeral presence signal. It is never persisted;
// the presence tracker enforces a local time-to-live on true indicators.
type TypingIndicator struct {
	RoomID      string `json:"room_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	IsTyping    bool   `json:"is_typing"`
}
