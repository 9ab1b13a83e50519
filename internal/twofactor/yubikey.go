package twofactor

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/vaultkeep/server/internal/crypto"
	"github.com/vaultkeep/server/internal/model"
)

// YubiKeyMetadata is the persisted (kind YubiKey) provider state: up to
// five registered 12-character public IDs and whether NFC reading is
// advertised to the client.
type YubiKeyMetadata struct {
	Keys []string `json:"keys"`
	NFC  bool     `json:"nfc"`
}

// YubiKey implements OTP verification against an external YubiCloud-
// compatible validation server.
type YubiKey struct {
	ClientID  string
	SecretKey []byte // base64-decoded API key
	Servers   []string
	Client    *http.Client
}

// NewYubiKey builds a provider against servers (defaulting to the public
// YubiCloud host when empty).
func NewYubiKey(clientID, secretKeyB64 string, servers []string) (*YubiKey, error) {
	secret, err := base64.StdEncoding.DecodeString(secretKeyB64)
	if err != nil {
		return nil, err
	}
	if len(servers) == 0 {
		servers = []string{"https://api.yubico.com/wsapi/2.0/verify"}
	}
	return &YubiKey{ClientID: clientID, SecretKey: secret, Servers: servers, Client: http.DefaultClient}, nil
}

func (p *YubiKey) Kind() model.TwoFactorKind { return model.TwoFactorYubiKey }

func (p *YubiKey) Present(ctx context.Context, user *model.User, tf *model.TwoFactor) (json.RawMessage, error) {
	meta := YubiKeyMetadata{}
	if tf != nil {
		_ = json.Unmarshal(tf.Data, &meta)
	}
	return json.Marshal(meta)
}

// Verify extracts the 12-character public ID prefix of token and checks
// it is one of the user's registered keys, then validates the OTP itself
// against the configured validation servers.
func (p *YubiKey) Verify(ctx context.Context, user *model.User, tf *model.TwoFactor, token, clientIP string) error {
	if len(token) < 12 {
		return &VerifyError{Err: errYubiKeyFormat{}, Event: model.EventUserFailedLogIn2FA}
	}
	publicID := token[:12]

	var meta YubiKeyMetadata
	if tf != nil {
		_ = json.Unmarshal(tf.Data, &meta)
	}
	registered := false
	for _, k := range meta.Keys {
		if k == publicID {
			registered = true
			break
		}
	}
	if !registered {
		return &VerifyError{Err: errYubiKeyUnregistered{}, Event: model.EventUserFailedLogIn2FA}
	}

	if err := p.verifyOTP(ctx, token); err != nil {
		return &VerifyError{Err: err, Event: model.EventUserFailedLogIn2FA}
	}
	return nil
}

func (p *YubiKey) verifyOTP(ctx context.Context, otp string) error {
	nonce, err := crypto.GenerateAPIKey()
	if err != nil {
		return err
	}
	nonce = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, nonce)
	if len(nonce) > 40 {
		nonce = nonce[:40]
	}

	params := url.Values{}
	params.Set("id", p.ClientID)
	params.Set("otp", otp)
	params.Set("nonce", nonce)
	p.sign(params)

	var lastErr error
	for _, server := range p.Servers {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server+"?"+params.Encode(), nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		status, verr := parseYubicoResponse(resp)
		resp.Body.Close()
		if verr != nil {
			lastErr = verr
			continue
		}
		if status != "OK" {
			return fmt.Errorf("yubico validation failed: %s", status)
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("no yubico validation server reachable")
}

// sign adds the protocol's HMAC-SHA1 signature over the sorted
// key=value parameter string, matching the YubiCloud request-signing
// algorithm.
func (p *YubiKey) sign(params url.Values) {
	if len(p.SecretKey) == 0 {
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}
	mac := hmac.New(sha1.New, p.SecretKey)
	mac.Write([]byte(strings.Join(pairs, "&")))
	params.Set("h", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
}

func parseYubicoResponse(resp *http.Response) (string, error) {
	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "status=") {
			return strings.TrimPrefix(line, "status="), nil
		}
	}
	return "", fmt.Errorf("malformed yubico response")
}

type errYubiKeyFormat struct{}

func (errYubiKeyFormat) Error() string { return "OTP is not a valid Yubikey OTP" }

type errYubiKeyUnregistered struct{}

func (errYubiKeyUnregistered) Error() string { return "given Yubikey is not registered" }
