package model

// Update is an inbound chat event reduced to what the bot acts on.
type Update struct {
	UpdateID     int    `json:"update_id"`
	UserID       int64  `json:"user_id"`
	ChatID       int64  `json:"chat_id"`
	Username     string `json:"username,omitempty"`
	Text         string `json:"text,omitempty"`
	Command      string `json:"command,omitempty"` // without the leading slash
	CallbackID   string `json:"callback_id,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// IsCallback reports whether the update is an inline keyboard press.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}
