package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// HookTimeout bounds a single webhook delivery attempt.
var HookTimeout = 10 * time.Second

// HookClient delivers outbound webhook notifications: the optional
// user-created hook and the mandatory reset-token hook.
type HookClient struct {
	client *http.Client
	logger Logger
}

func NewHookClient() *HookClient {
	return &HookClient{
		client: &http.Client{Timeout: HookTimeout},
		logger: defLogger{},
	}
}

func (h *HookClient) WithLogger(logger Logger) *HookClient {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *HookClient) WithHTTPClient(client *http.Client) *HookClient {
	if client != nil {
		h.client = client
	}
	return h
}

// Post delivers the payload as JSON. A transport failure or a non 2xx
// response is an error; callers decide whether delivery is fatal.
func (h *HookClient) Post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode hook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build hook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error("hook delivery failed url=%s: %s", url, err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "hook request failed").
			WithCode(goerrors.CodeInternal)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		h.logger.Error("hook endpoint rejected payload url=%s status=%d", url, resp.StatusCode)
		return goerrors.New("hook endpoint returned an error status", goerrors.CategoryOperation).
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	return nil
}

// ResetHookPayload is what the reset-token hook endpoint receives. The
// token travels only here; it is never returned to the requesting client.
type ResetHookPayload struct {
	Username  string  `json:"username"`
	FirstName *string `json:"firstname"`
	LastName  *string `json:"lastname"`
	Email     string  `json:"email"`
	Token     string  `json:"token"`
}
