package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/vedran77/partsmarket/internal/domain"
	"github.com/vedran77/partsmarket/internal/service"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// API is a typed client for the HTTP API. It implements feed.Store.
type API struct {
	baseURL    string
	http       *http.Client
	session    *Session
	retryUntil time.Duration
}

func NewAPI(baseURL string, session *Session) *API {
	return &API{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		http:       &http.Client{Timeout: 15 * time.Second},
		session:    session,
		retryUntil: 5 * time.Second,
	}
}

func (a *API) Register(ctx context.Context, input service.RegisterInput) (*domain.User, error) {
	var resp service.AuthResponse
	if err := a.do(ctx, http.MethodPost, "/api/v1/auth/register", input, &resp); err != nil {
		return nil, err
	}
	a.session.Set(resp.AccessToken, resp.User)
	return resp.User, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var resp service.AuthResponse
	input := service.LoginInput{Email: email, Password: password}
	if err := a.do(ctx, http.MethodPost, "/api/v1/auth/login", input, &resp); err != nil {
		return nil, err
	}
	a.session.Set(resp.AccessToken, resp.User)
	return resp.User, nil
}

func (a *API) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := a.do(ctx, http.MethodGet, "/api/v1/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserName returns the label the server shows for userID.
func (a *API) UserName(ctx context.Context, userID uuid.UUID) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/v1/users/"+userID.String()+"/name", nil, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

func (a *API) ResolveConversation(ctx context.Context, recipientID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	body := map[string]uuid.UUID{"user_id": recipientID}
	if err := a.do(ctx, http.MethodPost, "/api/v1/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindConversation returns nil, nil when the two users have never talked.
func (a *API) FindConversation(ctx context.Context, recipientID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := a.do(ctx, http.MethodGet, "/api/v1/conversations/with/"+recipientID.String(), nil, &conv)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (a *API) ListConversations(ctx context.Context, search string) ([]domain.Conversation, error) {
	path := "/api/v1/conversations"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}
	var convs []domain.Conversation
	if err := a.do(ctx, http.MethodGet, path, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (a *API) LoadHistory(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := a.do(ctx, http.MethodGet, "/api/v1/conversations/"+conversationID.String()+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (a *API) SendMessage(ctx context.Context, conversationID uuid.UUID, content string) (*domain.Message, error) {
	var msg domain.Message
	body := map[string]string{"content": content}
	if err := a.do(ctx, http.MethodPost, "/api/v1/conversations/"+conversationID.String()+"/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// do performs one API call. GETs are retried with exponential backoff on
// network errors and 5xx responses; other methods are tried once.
func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token := a.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := a.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			apiErr := decodeError(resp)
			if resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding %s %s: %w", method, path, err))
		}
		return nil
	}

	if method != http.MethodGet {
		err := operation()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = a.retryUntil
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func decodeError(resp *http.Response) *APIError {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
