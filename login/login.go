// Package login drives one login attempt for one account: fast re-auth with
// a cached wxid when possible, the QR challenge flow otherwise. An attempt is
// terminal on success, QR rejection, or deadline; the supervision loop owns
// retrying whole attempts.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quailyquaily/lwherd/lwapi"
)

const (
	defaultQRPollInterval = 5 * time.Second
	defaultQRDeadline     = 300 * time.Second
)

// ErrQRTimeout reports that the QR challenge was not confirmed before the
// flow's wall-clock deadline.
var ErrQRTimeout = errors.New("login: qr confirmation timed out")

// Error is a terminal QR outcome: the user canceled the scan or let the code
// expire. Terminal for the attempt, not for the account.
type Error struct {
	Status int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("login: qr %s (status %d)", e.Reason, e.Status)
}

// Flow holds everything one login attempt needs. PresentQR is the operator
// surface: it gets the scannable URL and returns nothing.
type Flow struct {
	Client    *lwapi.Client
	DeviceID  string
	Proxy     *lwapi.ProxyInfo
	Remark    string
	Logger    *slog.Logger
	PresentQR func(loginURL string)

	QRPollInterval time.Duration
	QRDeadline     time.Duration
}

func (f *Flow) logger() *slog.Logger {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	return log.With("account", f.Remark)
}

func (f *Flow) pollInterval() time.Duration {
	if f.QRPollInterval > 0 {
		return f.QRPollInterval
	}
	return defaultQRPollInterval
}

func (f *Flow) deadline() time.Duration {
	if f.QRDeadline > 0 {
		return f.QRDeadline
	}
	return defaultQRDeadline
}

// Run performs one attempt and returns the logged-in wxid. On success the
// wxid is already set on the client's session.
func (f *Flow) Run(ctx context.Context, savedWxid string) (string, error) {
	log := f.logger()

	if savedWxid != "" {
		f.Client.Session().SetWxid(savedWxid)
		err := f.Client.SecAutoLogin(ctx)
		if err == nil {
			log.Info("login_reauth_ok", "wxid", savedWxid)
			return savedWxid, nil
		}
		if !lwapi.IsBusinessError(err) {
			// Network or protocol trouble says nothing about the cached
			// wxid; let the supervisor retry the whole attempt.
			f.Client.Session().Clear()
			return "", fmt.Errorf("login: fast re-auth: %w", err)
		}
		log.Warn("login_reauth_rejected", "wxid", savedWxid, "error", err.Error())
		f.Client.Session().Clear()
	}

	return f.runQRFlow(ctx, log)
}

func (f *Flow) runQRFlow(ctx context.Context, log *slog.Logger) (string, error) {
	qr, err := f.Client.GetQRCode(ctx, f.DeviceID, f.Proxy)
	if err != nil {
		return "", fmt.Errorf("login: qr issue: %w", err)
	}
	log.Info("login_qr_issued", "uuid", qr.UUID, "expires_in", qr.ExpiredTime)
	if f.PresentQR != nil {
		f.PresentQR(qr.LoginURL())
	}

	deadline := time.Now().Add(f.deadline())
	interval := f.pollInterval()
	lastStatus := -1

	for {
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w after %s", ErrQRTimeout, f.deadline())
		}

		status, err := f.Client.CheckQRCode(ctx, qr.UUID)
		switch {
		case err != nil && ctx.Err() != nil:
			return "", ctx.Err()
		case err != nil:
			// Transient poll errors keep the deadline running.
			log.Warn("login_qr_check_error", "error", err.Error())
		default:
			switch status.Status {
			case lwapi.QRStatusConfirmed:
				if status.Wxid == "" {
					return "", &lwapi.ProtocolError{Op: "Login/QRCheck", Body: "confirmed without wxid"}
				}
				f.Client.Session().SetWxid(status.Wxid)
				log.Info("login_qr_confirmed", "wxid", status.Wxid)
				return status.Wxid, nil
			case lwapi.QRStatusCanceled:
				return "", &Error{Status: status.Status, Reason: "canceled by user"}
			case lwapi.QRStatusExpired:
				return "", &Error{Status: status.Status, Reason: "code expired"}
			default:
				// Unknown values included: keep polling.
				if status.Status != lastStatus {
					log.Info("login_qr_status", "status", status.Status, "label", qrStatusLabel(status.Status))
					lastStatus = status.Status
				}
			}
		}

		wait := interval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}
	}
}

func qrStatusLabel(status int) string {
	switch status {
	case lwapi.QRStatusWaitingScan:
		return "waiting_scan"
	case lwapi.QRStatusScanned:
		return "scanned"
	case lwapi.QRStatusConfirmed:
		return "confirmed"
	case lwapi.QRStatusCanceled:
		return "canceled"
	case lwapi.QRStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}
