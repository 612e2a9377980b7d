package login

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/quailyquaily/lwherd/lwapi"
)

// fakeAPI scripts the login endpoints of the remote service.
type fakeAPI struct {
	mu            sync.Mutex
	qrGetCalls    int
	qrCheckCalls  int
	reauthCalls   int
	reauthWxid    string
	reauthCode    int
	checkScript   []string // raw envelope bodies, last one repeats
	qrCheckBroken int      // first N QRCheck calls answer http 502
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Login/SecAutoLogin", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.reauthCalls++
		f.reauthWxid = r.Header.Get("X-Wxid")
		code := f.reauthCode
		f.mu.Unlock()
		if code == 0 {
			code = 200
		}
		fmt.Fprintf(w, `{"code":%d,"message":"reauth rejected","data":null}`, code)
	})
	mux.HandleFunc("/api/Login/QRGet", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.qrGetCalls++
		f.mu.Unlock()
		fmt.Fprint(w, `{"code":200,"message":"","data":{"QrBase64":"b64","QrUrl":"u","ExpiredTime":240,"DeviceId":"dev","Uuid":"uuid-1"}}`)
	})
	mux.HandleFunc("/api/Login/QRCheck", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		call := f.qrCheckCalls
		f.qrCheckCalls++
		broken := call < f.qrCheckBroken
		idx := call - f.qrCheckBroken
		if idx < 0 {
			idx = 0
		}
		if idx >= len(f.checkScript) {
			idx = len(f.checkScript) - 1
		}
		var body string
		if len(f.checkScript) > 0 {
			body = f.checkScript[idx]
		}
		f.mu.Unlock()
		if broken {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func qrStatusBody(status int, wxid string) string {
	return fmt.Sprintf(`{"code":200,"message":"","data":{"status":%d,"expiredTime":120,"wxid":%q}}`, status, wxid)
}

func newFlow(srv *httptest.Server) *Flow {
	return &Flow{
		Client:         lwapi.NewClient(lwapi.Config{BaseURL: srv.URL}),
		DeviceID:       "dev",
		Remark:         "test",
		QRPollInterval: time.Millisecond,
		QRDeadline:     2 * time.Second,
	}
}

func TestRunFastReauthSkipsQR(t *testing.T) {
	api := &fakeAPI{}
	srv := api.server(t)
	flow := newFlow(srv)

	wxid, err := flow.Run(context.Background(), "wxid_cached")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if wxid != "wxid_cached" {
		t.Fatalf("Run() = %q, want wxid_cached", wxid)
	}
	if api.qrGetCalls != 0 {
		t.Fatalf("QRGet calls = %d, want 0", api.qrGetCalls)
	}
	if api.reauthWxid != "wxid_cached" {
		t.Fatalf("reauth X-Wxid = %q, want wxid_cached", api.reauthWxid)
	}
	if got := flow.Client.Session().Wxid(); got != "wxid_cached" {
		t.Fatalf("session wxid = %q, want wxid_cached", got)
	}
}

func TestRunReauthRejectedFallsThroughToQR(t *testing.T) {
	api := &fakeAPI{
		reauthCode: 500,
		checkScript: []string{
			qrStatusBody(lwapi.QRStatusWaitingScan, ""),
			qrStatusBody(lwapi.QRStatusWaitingScan, ""),
			qrStatusBody(lwapi.QRStatusScanned, ""),
			qrStatusBody(lwapi.QRStatusConfirmed, "wxid_fresh"),
		},
	}
	srv := api.server(t)
	flow := newFlow(srv)

	wxid, err := flow.Run(context.Background(), "wxid_stale")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if wxid != "wxid_fresh" {
		t.Fatalf("Run() = %q, want wxid_fresh", wxid)
	}
	if api.qrGetCalls != 1 {
		t.Fatalf("QRGet calls = %d, want 1", api.qrGetCalls)
	}
	if got := flow.Client.Session().Wxid(); got != "wxid_fresh" {
		t.Fatalf("session wxid = %q, want wxid_fresh", got)
	}
}

func TestRunNoTokenQRScenario(t *testing.T) {
	api := &fakeAPI{
		checkScript: []string{
			qrStatusBody(lwapi.QRStatusWaitingScan, ""),
			qrStatusBody(lwapi.QRStatusWaitingScan, ""),
			qrStatusBody(lwapi.QRStatusScanned, ""),
			qrStatusBody(lwapi.QRStatusConfirmed, "wxid_new"),
		},
	}
	srv := api.server(t)
	flow := newFlow(srv)

	var presented string
	flow.PresentQR = func(loginURL string) { presented = loginURL }

	wxid, err := flow.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if wxid != "wxid_new" {
		t.Fatalf("Run() = %q, want wxid_new", wxid)
	}
	if api.reauthCalls != 0 {
		t.Fatalf("SecAutoLogin calls = %d, want 0", api.reauthCalls)
	}
	if presented != "http://weixin.qq.com/x/uuid-1" {
		t.Fatalf("presented QR url = %q", presented)
	}
}

func TestRunQRTimeout(t *testing.T) {
	api := &fakeAPI{
		checkScript: []string{qrStatusBody(lwapi.QRStatusWaitingScan, "")},
	}
	srv := api.server(t)
	flow := newFlow(srv)
	flow.QRPollInterval = 10 * time.Millisecond
	flow.QRDeadline = 80 * time.Millisecond

	start := time.Now()
	_, err := flow.Run(context.Background(), "")
	if !errors.Is(err, ErrQRTimeout) {
		t.Fatalf("Run() error = %v, want ErrQRTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < flow.QRDeadline {
		t.Fatalf("Run() returned after %s, before the %s deadline", elapsed, flow.QRDeadline)
	}
}

func TestRunQRCanceled(t *testing.T) {
	api := &fakeAPI{
		checkScript: []string{qrStatusBody(lwapi.QRStatusCanceled, "")},
	}
	srv := api.server(t)
	flow := newFlow(srv)

	_, err := flow.Run(context.Background(), "")
	var loginErr *Error
	if !errors.As(err, &loginErr) {
		t.Fatalf("Run() error = %v, want *login.Error", err)
	}
	if loginErr.Status != lwapi.QRStatusCanceled {
		t.Fatalf("login error status = %d, want %d", loginErr.Status, lwapi.QRStatusCanceled)
	}
}

func TestRunPollErrorsDoNotAbort(t *testing.T) {
	api := &fakeAPI{
		qrCheckBroken: 2,
		checkScript:   []string{qrStatusBody(lwapi.QRStatusConfirmed, "wxid_after_flake")},
	}
	srv := api.server(t)
	flow := newFlow(srv)

	wxid, err := flow.Run(context.Background(), "")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if wxid != "wxid_after_flake" {
		t.Fatalf("Run() = %q, want wxid_after_flake", wxid)
	}
	if api.qrCheckCalls < 3 {
		t.Fatalf("QRCheck calls = %d, want >= 3", api.qrCheckCalls)
	}
}

func TestRunCancellation(t *testing.T) {
	api := &fakeAPI{
		checkScript: []string{qrStatusBody(lwapi.QRStatusWaitingScan, "")},
	}
	srv := api.server(t)
	flow := newFlow(srv)
	flow.QRPollInterval = 50 * time.Millisecond
	flow.QRDeadline = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := flow.Run(ctx, "")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run() did not exit within one poll interval of cancellation")
	}
}
