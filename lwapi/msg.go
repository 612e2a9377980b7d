package lwapi

import (
	"context"
	"strings"
	"time"
)

// Message types the service emits. Anything not listed is passed through to
// handlers untouched.
const (
	MsgTypeText   = 1
	MsgTypeImage  = 3
	MsgTypeVoice  = 34
	MsgTypeVideo  = 43
	MsgTypeShare  = 49
	MsgTypeSystem = 10000
)

// BuiltinString matches the service's nested string wrapper.
type BuiltinString struct {
	Str string `json:"string"`
}

type BuiltinBuffer struct {
	Len    int    `json:"iLen"`
	Buffer []byte `json:"buffer"`
}

type Message struct {
	MsgID        int64         `json:"msgId"`
	FromUserName BuiltinString `json:"fromUserName"`
	ToUserName   BuiltinString `json:"toUserName"`
	MsgType      int           `json:"msgType"`
	Content      BuiltinString `json:"content"`
	Status       int           `json:"status"`
	ImgStatus    int           `json:"imgStatus"`
	ImgBuf       BuiltinBuffer `json:"imgBuf"`
	CreateTime   int64         `json:"createTime"`
	MsgSource    string        `json:"msgSource,omitempty"`
	PushContent  string        `json:"pushContent,omitempty"`
	NewMsgID     int64         `json:"newMsgId,omitempty"`
	MsgSeq       int64         `json:"msgSeq,omitempty"`
}

func (m *Message) Sender() string { return m.FromUserName.Str }

func (m *Message) Text() string { return strings.TrimSpace(m.Content.Str) }

func (m *Message) SentAt() time.Time { return time.Unix(m.CreateTime, 0) }

// SyncResult is the payload of Msg/Sync. Only new messages matter to the
// poller; the remaining envelope fields are kept so handlers can inspect
// contact and sync-key churn if they care.
type SyncResult struct {
	AddMsgs     []Message      `json:"addMsgs"`
	ModContacts []any          `json:"modContacts,omitempty"`
	DelContacts []any          `json:"delContacts,omitempty"`
	KeyBuf      *BuiltinBuffer `json:"keyBuf,omitempty"`
}

// SyncMessages long-polls for new events. The server holds the request open
// until something arrives or its own window elapses; an elapsed client
// deadline surfaces as a timeout network error, which callers treat as a
// normal empty poll.
func (c *Client) SyncMessages(ctx context.Context) (*SyncResult, error) {
	var out SyncResult
	if err := c.post(ctx, "Msg/Sync", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type sendTextRequest struct {
	ToWxid  string `json:"to_wxid"`
	Content string `json:"content"`
	At      string `json:"at,omitempty"`
}

// SendText sends a text message. toWxid is a contact or chatroom id; at
// lists chatroom members to mention, comma separated.
func (c *Client) SendText(ctx context.Context, toWxid, content, at string) error {
	return c.post(ctx, "Msg/SendTxt", sendTextRequest{
		ToWxid:  toWxid,
		Content: content,
		At:      strings.TrimSpace(at),
	}, nil)
}
