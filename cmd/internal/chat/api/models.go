package chatapi

import (
	"time"

	"chord/cmd/internal/realtime"
)

type createThreadRequest struct {
	PeerID string `json:"peer_id"`
}

type threadResponse struct {
	ID           string    `json:"id"`
	Participants [2]string `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type messageResponse struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	SenderID  string     `json:"sender_id"`
	Body      string     `json:"body"`
	Seq       int64      `json:"seq"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

type messagesResponse struct {
	ThreadID string            `json:"thread_id"`
	Messages []messageResponse `json:"messages"`
}

type markReadResponse struct {
	ThreadID string `json:"thread_id"`
	Updated  int64  `json:"updated"`
}

func toThreadResponse(t realtime.Thread) threadResponse {
	return threadResponse{
		ID:           t.ID,
		Participants: [2]string{t.UserLo, t.UserHi},
		CreatedAt:    t.CreatedAt,
	}
}

func toMessageResponse(m realtime.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		Seq:       m.Seq,
		CreatedAt: m.CreatedAt,
		ReadAt:    m.ReadAt,
	}
}
