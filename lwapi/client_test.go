package lwapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAPIURL(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{base: "http://localhost:8081", path: "Login/QRGet", want: "http://localhost:8081/api/Login/QRGet"},
		{base: "http://localhost:8081/", path: "/Msg/Sync", want: "http://localhost:8081/api/Msg/Sync"},
	}
	for _, tc := range cases {
		cfg := Config{BaseURL: tc.base}
		if got := cfg.apiURL(tc.path); got != tc.want {
			t.Fatalf("apiURL(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestPostAttachesWxidHeaderOnlyWhenLoggedIn(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Wxid")
		fmt.Fprint(w, `{"code":200,"message":"","data":null}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if err := c.Heartbeat(context.Background()); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if gotHeader != "" {
		t.Fatalf("pre-login X-Wxid = %q, want empty", gotHeader)
	}

	c.Session().SetWxid("wxid_abc")
	if err := c.Heartbeat(context.Background()); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	if gotHeader != "wxid_abc" {
		t.Fatalf("post-login X-Wxid = %q, want %q", gotHeader, "wxid_abc")
	}
}

func TestPostClassifiesBusinessError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":301,"message":"session expired","data":null}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.Heartbeat(context.Background())
	var be *BusinessError
	if !errors.As(err, &be) {
		t.Fatalf("Heartbeat() error = %v, want *BusinessError", err)
	}
	if be.Code != 301 || be.Message != "session expired" {
		t.Fatalf("BusinessError = %+v, want code=301 message=%q", be, "session expired")
	}
}

func TestPostClassifiesProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.Heartbeat(context.Background())
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Heartbeat() error = %v, want *ProtocolError", err)
	}
	if pe.StatusCode != http.StatusBadGateway {
		t.Fatalf("ProtocolError.StatusCode = %d, want %d", pe.StatusCode, http.StatusBadGateway)
	}
}

func TestPostClassifiesMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not json at all")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.Heartbeat(context.Background())
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Heartbeat() error = %v, want *ProtocolError", err)
	}
}

func TestPostClassifiesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.Heartbeat(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("Heartbeat() error = %v, want network error", err)
	}
}

func TestPostTimeoutIsTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.SyncMessages(context.Background())
	if !IsTimeout(err) {
		t.Fatalf("SyncMessages() error = %v, want timeout network error", err)
	}
}

func TestGetQRCodeDecodesData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["deviceId"] != "device123" {
			t.Errorf("deviceId = %v, want device123", req["deviceId"])
		}
		fmt.Fprint(w, `{"code":200,"message":"","data":{"QrBase64":"b64","QrUrl":"https://example/qr.png","ExpiredTime":240,"DeviceId":"device123","Uuid":"uuid-1"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	qr, err := c.GetQRCode(context.Background(), "device123", nil)
	if err != nil {
		t.Fatalf("GetQRCode() error = %v", err)
	}
	if qr.UUID != "uuid-1" || qr.ExpiredTime != 240 {
		t.Fatalf("GetQRCode() = %+v", qr)
	}
	if got, want := qr.LoginURL(), "http://weixin.qq.com/x/uuid-1"; got != want {
		t.Fatalf("LoginURL() = %q, want %q", got, want)
	}
}

func TestSyncMessagesDecodesBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"message":"","data":{"addMsgs":[{"msgId":7,"fromUserName":{"string":"wxid_friend"},"toUserName":{"string":"wxid_me"},"msgType":1,"content":{"string":" hello "},"status":3,"imgStatus":1,"imgBuf":{"iLen":0},"createTime":1700000000}]}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	res, err := c.SyncMessages(context.Background())
	if err != nil {
		t.Fatalf("SyncMessages() error = %v", err)
	}
	if len(res.AddMsgs) != 1 {
		t.Fatalf("len(AddMsgs) = %d, want 1", len(res.AddMsgs))
	}
	msg := res.AddMsgs[0]
	if msg.Sender() != "wxid_friend" {
		t.Fatalf("Sender() = %q, want wxid_friend", msg.Sender())
	}
	if msg.Text() != "hello" {
		t.Fatalf("Text() = %q, want hello", msg.Text())
	}
	if msg.MsgType != MsgTypeText {
		t.Fatalf("MsgType = %d, want %d", msg.MsgType, MsgTypeText)
	}
}
