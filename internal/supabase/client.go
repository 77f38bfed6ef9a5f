package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// Client talks to Supabase. Identity calls go through the GoTrue admin client
// with the service role key; RPC calls are relayed with the caller's own token.
type Client struct {
	baseURL        string
	anonKey        string
	serviceRoleKey string
	http           *http.Client
	auth           gotrue.Client
}

type Options struct {
	BaseURL        string
	AnonKey        string
	ServiceRoleKey string
	Timeout        time.Duration
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		baseURL:        baseURL,
		anonKey:        opts.AnonKey,
		serviceRoleKey: opts.ServiceRoleKey,
		http:           &http.Client{Timeout: timeout},
		auth: gotrue.New("", opts.ServiceRoleKey).
			WithCustomGoTrueURL(baseURL + "/auth/v1").
			WithToken(opts.ServiceRoleKey),
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// APIError is a non-2xx response from Supabase.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase %d: %s", e.Status, e.Message)
}

var ErrNotConfigured = errors.New("supabase client is not configured")

type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type CreateUserParams struct {
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// CreateUser provisions an identity through the admin API using the service role key.
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if !c.Configured() {
		return User{}, ErrNotConfigured
	}
	// The GoTrue client takes no context; honour cancellation before the call.
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	res, err := c.auth.AdminCreateUser(types.AdminCreateUserRequest{
		Aud:          "authenticated",
		Role:         "authenticated",
		Email:        params.Email,
		Phone:        params.Phone,
		EmailConfirm: params.EmailConfirm,
		UserMetadata: params.UserMetadata,
	})
	if err != nil {
		return User{}, identityError(err)
	}
	return User{
		ID:           res.ID.String(),
		Email:        res.Email,
		Phone:        res.Phone,
		UserMetadata: res.UserMetadata,
	}, nil
}

// gotrue-go reports non-2xx answers as "response status code N: <body>".
var identityStatus = regexp.MustCompile(`(?s)^response status code (\d+)(?::\s*(.*))?$`)

func identityError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	m := identityStatus.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return err
	}
	return decodeAPIError(status, []byte(strings.TrimSpace(m[2])))
}

// RPC invokes a Postgres function through PostgREST as the holder of bearerToken.
func (c *Client) RPC(ctx context.Context, function string, bearerToken string, args any, out any) error {
	return c.do(ctx, http.MethodPost, "/rest/v1/rpc/"+url.PathEscape(function), c.anonKey, bearerToken, args, out)
}

func IsEmailExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == "email_exists" || apiErr.Code == "user_already_exists" {
		return true
	}
	return apiErr.Status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.Message), "already been registered")
}

func (c *Client) do(ctx context.Context, method, path, apiKey, bearer string, body any, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("apikey", apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeAPIError(res.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}

func decodeAPIError(status int, payload []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body struct {
		Code      any    `json:"code"`
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
		Msg       string `json:"msg"`
		Error     string `json:"error"`
		ErrorDesc string `json:"error_description"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(payload))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	switch {
	case body.ErrorCode != "":
		apiErr.Code = body.ErrorCode
	case body.Code != nil:
		apiErr.Code = strings.TrimSpace(fmt.Sprint(body.Code))
	}
	for _, candidate := range []string{body.Message, body.Msg, body.ErrorDesc, body.Error} {
		if strings.TrimSpace(candidate) != "" {
			apiErr.Message = candidate
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
