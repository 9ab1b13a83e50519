package twofactor

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	duoapi "github.com/duosecurity/duo_api_golang"
	"github.com/duosecurity/duo_api_golang/authapi"

	"github.com/vaultkeep/server/internal/model"
)

// Duo implements the modern Auth-API flow via duo_api_golang, with a
// hand-rolled legacy iframe (Web SDK v2) fallback for deployments still
// on the sig_request/sig_response handshake duo_api_golang never covered.
type Duo struct {
	Client *authapi.AuthApi

	// Legacy iframe credentials; empty IKey disables the legacy path.
	IKey, SKey, AKey, Host string
}

// NewDuo builds a provider against the modern Duo Auth API.
func NewDuo(ikey, skey, host string) *Duo {
	api := duoapi.NewDuoApi(ikey, skey, host, "vaultkeep")
	return &Duo{Client: authapi.NewAuthApi(*api), IKey: ikey, SKey: skey, Host: host}
}

func (p *Duo) Kind() model.TwoFactorKind { return model.TwoFactorDuo }

type duoChallenge struct {
	Host      string `json:"host"`
	Request   string `json:"signature,omitempty"` // legacy iframe sig_request
	AuthURL   string `json:"auth_url,omitempty"`  // modern flow redirect target, filled by the caller
}

// Present returns the Duo host and, when legacy credentials are set
// (non-empty IKey), a legacy sig_request so older clients keep working. It
// makes no call to the modern API.
func (p *Duo) Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error) {
	c := duoChallenge{Host: p.Host}
	if p.IKey != "" {
		sig, err := p.signRequest(user.Email)
		if err != nil {
			return nil, err
		}
		c.Request = sig
	}
	return json.Marshal(c)
}

// Verify accepts either a modern passcode/push response ("passcode:<code>"
// or "push") or a legacy sig_response ("sig_response:<value>").
func (p *Duo) Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token, clientIP string) error {
	switch {
	case strings.HasPrefix(token, "sig_response:"):
		return p.verifyLegacy(user.Email, strings.TrimPrefix(token, "sig_response:"))
	case strings.HasPrefix(token, "passcode:"):
		return p.verifyModern(ctx, user.Email, "passcode", authapi.AuthPasscode(strings.TrimPrefix(token, "passcode:")))
	case token == "push":
		return p.verifyModern(ctx, user.Email, "push", authapi.AuthDevice("auto"))
	default:
		return &VerifyError{Err: fmt.Errorf("unrecognized duo response"), Event: model.EventUserFailedLogIn2FA}
	}
}

func (p *Duo) verifyModern(ctx context.Context, username, factor string, opt authapi.AuthOption) error {
	if p.Client == nil {
		return &VerifyError{Err: fmt.Errorf("duo not configured"), Event: model.EventUserFailedLogIn2FA}
	}
	resp, err := p.Client.Auth(factor, authapi.AuthUsername(username), opt)
	if err != nil {
		return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
	}
	if resp.Response.Result != "allow" {
		return &VerifyError{Err: fmt.Errorf("duo denied: %s", resp.Response.Status_Msg), Event: model.EventUserFailedLogIn2FA}
	}
	return nil
}

// signRequest produces the classic Duo Web SDK v2 sig_request: two
// HMAC-signed, base64-encoded cookies (one app-scoped, one Duo-scoped)
// concatenated with a colon, each carrying a 5-minute expiry.
func (p *Duo) signRequest(username string) (string, error) {
	exp := time.Now().Add(5 * time.Minute).Unix()
	duoSig, err := p.signCookie("TX", username, p.IKey, p.SKey, exp)
	if err != nil {
		return "", err
	}
	appSig, err := p.signCookie("APP", username, p.IKey, p.AKey, exp)
	if err != nil {
		return "", err
	}
	return duoSig + ":" + appSig, nil
}

func (p *Duo) verifyLegacy(username, sigResponse string) error {
	parts := strings.SplitN(sigResponse, ":", 2)
	if len(parts) != 2 {
		return &VerifyError{Err: fmt.Errorf("malformed duo sig_response"), Event: model.EventUserFailedLogIn2FA}
	}
	authUser, err := p.parseCookie("AUTH", parts[0], p.IKey, p.SKey)
	if err != nil {
		return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
	}
	appUser, err := p.parseCookie("APP", parts[1], p.IKey, p.AKey)
	if err != nil {
		return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
	}
	if authUser != username || appUser != username {
		return &VerifyError{Err: fmt.Errorf("duo response username mismatch"), Event: model.EventUserFailedLogIn2FA}
	}
	return nil
}

func (p *Duo) signCookie(prefix, username, ikey, key string, expire int64) (string, error) {
	val := fmt.Sprintf("%s|%s|%d", username, ikey, expire)
	cookie := prefix + "|" + base64.StdEncoding.EncodeToString([]byte(val))
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(cookie))
	sig := fmt.Sprintf("%x", mac.Sum(nil))
	return cookie + "|" + sig, nil
}

func (p *Duo) parseCookie(expectPrefix, cookie, ikey, key string) (string, error) {
	parts := strings.Split(cookie, "|")
	if len(parts) != 3 || parts[0] != expectPrefix {
		return "", fmt.Errorf("malformed duo cookie")
	}
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(parts[0] + "|" + parts[1]))
	expected := fmt.Sprintf("%x", mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return "", fmt.Errorf("duo cookie signature mismatch")
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", err
	}
	fields := strings.Split(string(decoded), "|")
	if len(fields) != 3 {
		return "", fmt.Errorf("malformed duo cookie payload")
	}
	var expire int64
	if _, err := fmt.Sscanf(fields[2], "%d", &expire); err != nil {
		return "", err
	}
	if time.Now().Unix() > expire {
		return "", fmt.Errorf("duo cookie expired")
	}
	if fields[1] != ikey {
		return "", fmt.Errorf("duo cookie ikey mismatch")
	}
	return fields[0], nil
}
