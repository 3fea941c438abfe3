// Package dispatch defines the wire contract between the SDK and the
// Singlebase backend: every operation is a POST of an action-discriminated
// JSON envelope to a single endpoint, answered by a uniform
// {ok, data, error} envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
)

// Action names understood by the backend. The action string is the only
// routing discriminator; the payload shape is action-specific.
const (
	ActionAuthSignUp        = "auth.signup"
	ActionAuthSignIn        = "auth.signin"
	ActionAuthRefreshToken  = "auth.refresh_token"
	ActionAuthSignOut       = "auth.signout"
	ActionAuthNonce         = "auth.nonce"
	ActionAuthSettings      = "auth.settings"
	ActionAuthUpdateAccount = "auth.update_account"
	ActionAuthUpdateProfile = "auth.update_profile"
	ActionAuthSendOTP       = "auth.send_otp"
	ActionAuthOAuthConnect  = "auth.oauth_connect"

	ActionDBFetch  = "db.fetch"
	ActionDBInsert = "db.insert"
	ActionDBUpdate = "db.update"
	ActionDBDelete = "db.delete"
	ActionDBCount  = "db.count"

	ActionFileGet    = "file.get"
	ActionFileList   = "file.list"
	ActionFileUpload = "file.upload"
	ActionFileDelete = "file.delete"
	ActionFileUpdate = "file.update"
)

// Dispatcher sends one action to the backend and returns the decoded
// response envelope. A non-nil error means the call never produced an
// envelope (transport failure, malformed response); a server-side rejection
// comes back as a Response with OK=false and a populated Error.
type Dispatcher interface {
	Dispatch(ctx context.Context, action string, payload map[string]any) (*Response, error)
}

// Response is the backend's uniform response envelope.
type Response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

// DataMap decodes the data member into a generic map. A missing or null data
// member yields a nil map and no error.
func (r *Response) DataMap() (map[string]any, error) {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(r.Data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode response data: %w", err)
	}
	return m, nil
}

// Decode unmarshals the data member into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// APIError is a structured rejection from the backend.
type APIError struct {
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}
