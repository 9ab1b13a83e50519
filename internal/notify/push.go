package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PushRelay is the out-of-band channel (spec 4.10): a plain HTTP POST to
// an external push provider for devices that registered a push token.
// Failures are per-device and never propagate to the caller as a hard
// error beyond what the caller chooses to log.
type PushRelay struct {
	Endpoint string
	Client   *http.Client
}

// NewPushRelay builds a relay posting to endpoint with a bounded-timeout
// client; callers typically point endpoint at the vendor push gateway.
func NewPushRelay(endpoint string) *PushRelay {
	return &PushRelay{Endpoint: endpoint, Client: &http.Client{Timeout: 10 * time.Second}}
}

type pushRequest struct {
	PushToken      string         `json:"pushToken"`
	Type           UpdateType     `json:"type"`
	Payload        map[string]any `json:"payload"`
	ActingDeviceID string         `json:"actingDeviceId"`
}

// Send posts env to pushToken's registered device. A nil Client/empty
// Endpoint is treated as "push disabled" and returns nil without making a
// request, since not every deployment configures a push provider.
func (p *PushRelay) Send(ctx context.Context, pushToken string, env PushEnvelope) error {
	if p == nil || p.Client == nil || p.Endpoint == "" || pushToken == "" {
		return nil
	}

	body, err := json.Marshal(pushRequest{
		PushToken:      pushToken,
		Type:           env.Type,
		Payload:        env.Payload,
		ActingDeviceID: env.ActingDeviceID.String(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push relay: status %d", resp.StatusCode)
	}
	return nil
}
