package model

import "encoding/json"

// UserChat is the server-side mirror of one user's conversation.
type UserChat struct {
	Conversation []ConversationEntry `json:"conversation"`
	Unread       int                 `json:"unread"`
}

// EntryList decodes either a single entry object or an array of entries;
// the append endpoint accepts both.
type EntryList []ConversationEntry

func (l *EntryList) UnmarshalJSON(data []byte) error {
	var many []ConversationEntry
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one ConversationEntry
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = EntryList{one}
	return nil
}

// AppendChatRequest is the body of POST /api/chat/append. Incr, when
// present, is added to the stored unread counter; Unread, when present
// and Incr is not, replaces it.
type AppendChatRequest struct {
	Item   EntryList `json:"item"`
	Incr   *int      `json:"incr,omitempty"`
	Unread *int      `json:"unread,omitempty"`
}

// ReplaceChatRequest is the body of POST /api/chat: a wholesale replacement
// of the stored conversation and unread counter.
type ReplaceChatRequest struct {
	Conversation []ConversationEntry `json:"conversation"`
	Unread       int                 `json:"unread"`
}

// AppendChatResponse echoes the updated chat after an append.
type AppendChatResponse struct {
	OK   bool     `json:"ok"`
	Chat UserChat `json:"chat"`
}

// QARequest is the body of POST /api/qa.
type QARequest struct {
	Question string `json:"q"`
}

// QAResponse is the answer list for one question.
type QAResponse struct {
	Answers []Answer `json:"answers"`
}

// TrainRequest adds one document to the QA knowledge base.
type TrainRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}
