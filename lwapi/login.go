package lwapi

import "context"

// QR scan states reported by Login/QRCheck. Callers treat any other value as
// "not decided yet" to tolerate protocol variants.
const (
	QRStatusWaitingScan = 0
	QRStatusScanned     = 1
	QRStatusConfirmed   = 2
	QRStatusCanceled    = 3
	QRStatusExpired     = 4
)

// ProxyInfo configures an upstream proxy for the device session. Type: 0
// none, 1 http, 2 https, 3 socks5.
type ProxyInfo struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
	Type int    `json:"type,omitempty"`
}

type QRCode struct {
	QrBase64    string `json:"QrBase64"`
	QrURL       string `json:"QrUrl"`
	ExpiredTime int    `json:"ExpiredTime"`
	DeviceID    string `json:"DeviceId"`
	UUID        string `json:"Uuid"`
}

// LoginURL is the payload the user scans; the confirm happens on their phone.
func (q *QRCode) LoginURL() string {
	return "http://weixin.qq.com/x/" + q.UUID
}

type QRStatus struct {
	Status      int    `json:"status"`
	ExpiredTime int    `json:"expiredTime"`
	Wxid        string `json:"wxid"`
}

type qrGetRequest struct {
	DeviceID string     `json:"deviceId"`
	OsType   int        `json:"osType"`
	Proxy    *ProxyInfo `json:"proxy,omitempty"`
}

type qrCheckRequest struct {
	UUID string `json:"uuid"`
}

// GetQRCode asks the service to issue a login QR challenge for deviceID.
func (c *Client) GetQRCode(ctx context.Context, deviceID string, proxy *ProxyInfo) (*QRCode, error) {
	var out QRCode
	if err := c.post(ctx, "Login/QRGet", qrGetRequest{DeviceID: deviceID, Proxy: proxy}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckQRCode fetches the current scan state of a pending QR challenge.
func (c *Client) CheckQRCode(ctx context.Context, uuid string) (*QRStatus, error) {
	var out QRStatus
	if err := c.post(ctx, "Login/QRCheck", qrCheckRequest{UUID: uuid}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SecAutoLogin revalidates a cached wxid without user interaction. The wxid
// must already be set on the session; a business failure means it is dead.
func (c *Client) SecAutoLogin(ctx context.Context) error {
	return c.post(ctx, "Login/SecAutoLogin", nil, nil)
}

// Heartbeat keeps the server-side session alive.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.post(ctx, "Login/HeartBeat", nil, nil)
}

// Logout tears down the server-side session for the current wxid.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "Login/LogOut", nil, nil)
}
