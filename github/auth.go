package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
)

// DefaultWebURL is where the OAuth device flow endpoints live.
const DefaultWebURL = "https://github.com"

// Scopes are the OAuth scopes stringlate asks for: pushing to public
// repositories and creating gists.
var Scopes = []string{"public_repo", "gist"}

var (
	// ErrDeviceCodeExpired is returned when the user did not authorize in time.
	ErrDeviceCodeExpired = errors.New("github: device code expired, please try again")
	// ErrAccessDenied is returned when the user declined the authorization.
	ErrAccessDenied = errors.New("github: authorization denied by user")
	// ErrNoClientID is returned when no OAuth application is configured.
	ErrNoClientID = errors.New("github: no OAuth client id configured")
)

// DeviceCode is what the user needs to authorize a device flow login.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// Token is a granted OAuth access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

type tokenResponse struct {
	Token
	Error     string `json:"error"`
	ErrorDesc string `json:"error_description"`
	Interval  int    `json:"interval"`
}

// DeviceFlow runs the OAuth 2.0 device authorization grant (RFC 8628)
// against GitHub.
type DeviceFlow struct {
	ClientID string
	Scopes   []string

	http  *req.Client
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewDeviceFlow returns a device flow for the OAuth app clientID. webURL is
// normally DefaultWebURL.
func NewDeviceFlow(webURL, clientID string) *DeviceFlow {
	if webURL == "" {
		webURL = DefaultWebURL
	}
	c := req.C().
		SetBaseURL(strings.TrimRight(webURL, "/")).
		SetCommonHeader("Accept", "application/json").
		SetTimeout(30 * time.Second).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	return &DeviceFlow{
		ClientID: clientID,
		Scopes:   Scopes,
		http:     c,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// Login asks GitHub for a device code, hands it to prompt and polls until
// the user authorized the request, declined it, or the code expired.
func (f *DeviceFlow) Login(ctx context.Context, prompt func(verificationURI, userCode string)) (*Token, error) {
	if f.ClientID == "" {
		return nil, ErrNoClientID
	}

	dc, err := f.requestCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	if prompt != nil {
		prompt(dc.VerificationURI, dc.UserCode)
	}

	interval := time.Duration(dc.Interval) * time.Second
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	expiry := f.now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	for {
		if err := f.sleep(ctx, interval); err != nil {
			return nil, err
		}
		if f.now().After(expiry) {
			return nil, ErrDeviceCodeExpired
		}

		tr, err := f.poll(ctx, dc.DeviceCode)
		if err != nil {
			return nil, fmt.Errorf("polling access token: %w", err)
		}

		switch tr.Error {
		case "":
			if tr.AccessToken == "" {
				return nil, missing("poll access token", "access_token")
			}
			return &tr.Token, nil
		case "authorization_pending":
		case "slow_down":
			interval += 5 * time.Second
			if tr.Interval > 0 {
				interval = time.Duration(tr.Interval) * time.Second
			}
		case "expired_token":
			return nil, ErrDeviceCodeExpired
		case "access_denied":
			return nil, ErrAccessDenied
		default:
			desc := tr.ErrorDesc
			if desc == "" {
				desc = tr.Error
			}
			return nil, fmt.Errorf("authorization failed: %s", desc)
		}
	}
}

func (f *DeviceFlow) requestCode(ctx context.Context) (*DeviceCode, error) {
	var dc DeviceCode
	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"client_id": f.ClientID, "scope": strings.Join(f.Scopes, " ")}).
		SetSuccessResult(&dc).
		Post("/login/device/code")
	if err := handleAPIError(resp, err, "request device code"); err != nil {
		return nil, err
	}
	if dc.DeviceCode == "" || dc.UserCode == "" {
		return nil, missing("request device code", "device_code")
	}
	return &dc, nil
}

func (f *DeviceFlow) poll(ctx context.Context, deviceCode string) (*tokenResponse, error) {
	var tr tokenResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"client_id":   f.ClientID,
			"device_code": deviceCode,
			"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
		}).
		SetSuccessResult(&tr).
		Post("/login/oauth/access_token")
	if err := handleAPIError(resp, err, "poll access token"); err != nil {
		return nil, err
	}
	return &tr, nil
}
