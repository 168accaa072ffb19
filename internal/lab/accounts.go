// accounts.go - Account and pod provisioning client.
//
// Drives the external server's own registration endpoint: the same
// email/password/pod-name form the runbook fills in by hand, submitted
// programmatically. All authentication and account state lives in the
// external server; this client only relays credentials and records the
// outcome.
package lab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// registerPath is the account-registration endpoint exposed by the
// external server's identity provider.
const registerPath = "/idp/register/"

// ErrRegistrationRejected means the server refused the registration for
// a reason other than the account already existing.
var ErrRegistrationRejected = errors.New("registration rejected")

// AccountClient provisions accounts and pods against one server.
type AccountClient struct {
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

// ProvisionResult reports what happened to one account.
type ProvisionResult struct {
	Account AccountSpec `json:"account"`
	WebID   string      `json:"webid"`
	Created bool        `json:"created"` // false when the account already existed
}

// NewAccountClient returns a client for the server at baseURL.
func NewAccountClient(baseURL string, log *zap.Logger) *AccountClient {
	return &AccountClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// registerRequest mirrors the fields of the server's registration form.
type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	ConfirmPass string `json:"confirmPassword"`
	PodName     string `json:"podName"`
	Register    bool   `json:"register"`
	CreatePod   bool   `json:"createPod"`
	CreateWebID bool   `json:"createWebId"`
	RootPod     bool   `json:"rootPod"`
}

type registerResponse struct {
	WebID string `json:"webId"`
	Name  string `json:"name"`
}

// Provision creates one account with its pod. Re-running against an
// existing account is not an error: the server's "already exists"
// answer is reported as Created=false.
func (c *AccountClient) Provision(ctx context.Context, acct AccountSpec) (ProvisionResult, error) {
	res := ProvisionResult{Account: acct, WebID: c.fallbackWebID(acct.Pod)}

	body, err := json.Marshal(registerRequest{
		Email:       acct.Email,
		Password:    acct.Password,
		ConfirmPass: acct.Password,
		PodName:     acct.Pod,
		Register:    true,
		CreatePod:   true,
		CreateWebID: true,
	})
	if err != nil {
		return res, err
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			// Network errors are worth retrying; the server may still
			// be settling after startup.
			return err
		}
		defer resp.Body.Close()
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var reg registerResponse
			if err := json.Unmarshal(payload, &reg); err == nil && reg.WebID != "" {
				res.WebID = reg.WebID
			}
			res.Created = true
			return nil
		case alreadyExists(resp.StatusCode, payload):
			res.Created = false
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s",
				ErrRegistrationRejected, resp.StatusCode, firstLine(payload)))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(attempt, backoff.WithContext(bo, ctx)); err != nil {
		return res, fmt.Errorf("provision %s: %w", acct.Email, err)
	}

	c.log.Info("account provisioned",
		zap.String("email", acct.Email),
		zap.String("pod", acct.Pod),
		zap.String("webid", res.WebID),
		zap.Bool("created", res.Created))
	return res, nil
}

// ProvisionAll provisions every account in order, stopping at the first
// hard failure.
func (c *AccountClient) ProvisionAll(ctx context.Context, accounts []AccountSpec) ([]ProvisionResult, error) {
	results := make([]ProvisionResult, 0, len(accounts))
	for _, acct := range accounts {
		res, err := c.Provision(ctx, acct)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// fallbackWebID is the conventional WebID the server mints for a pod
// when the registration response does not echo one back.
func (c *AccountClient) fallbackWebID(pod string) string {
	return fmt.Sprintf("%s/%s/profile/card#me", c.baseURL, pod)
}

// alreadyExists recognises the server's duplicate-account answers.
func alreadyExists(status int, payload []byte) bool {
	if status != http.StatusBadRequest && status != http.StatusConflict {
		return false
	}
	msg := strings.ToLower(string(payload))
	return strings.Contains(msg, "already") || strings.Contains(msg, "exists") ||
		strings.Contains(msg, "taken")
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
