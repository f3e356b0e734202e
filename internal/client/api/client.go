package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
	"github.com/iudanet/fieldsync/pkg/api"
)

// Client представляет HTTP клиент для взаимодействия с сервером полей
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Save performs a conditional write of a field value.
func (c *Client) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	body := api.PutFieldRequest{
		Value:       req.Value,
		Version:     req.Version,
		OperationID: req.OperationID,
	}

	var resp api.PutFieldResponse
	if err := c.doRequest(ctx, http.MethodPut, fieldPath(req.EntityID, req.FieldID), body, &resp); err != nil {
		return models.SaveResult{}, c.enrich(err, req)
	}

	return models.SaveResult{
		ObservedVersion: resp.ObservedVersion,
		Value:           resp.Value,
		Version:         resp.Version,
	}, nil
}

// Get returns the current value and version of a field. Missing fields come
// back with version 0.
func (c *Client) Get(ctx context.Context, entityID, fieldID string) (models.EditableField, error) {
	var resp api.FieldResponse
	if err := c.doRequest(ctx, http.MethodGet, fieldPath(entityID, fieldID), nil, &resp); err != nil {
		return models.EditableField{}, fmt.Errorf("get field request failed: %w", err)
	}

	return models.EditableField{
		EntityID: entityID,
		FieldID:  fieldID,
		Value:    resp.Value,
		Version:  resp.Version,
	}, nil
}

// Health checks that the store is reachable.
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// enrich дополняет ошибку данными запроса
func (c *Client) enrich(err error, req models.SaveRequest) error {
	var conflictErr *syncerr.ConflictError
	if errors.As(err, &conflictErr) {
		conflictErr.LocalValue = req.Value
		conflictErr.Token.Expected = req.Version
		return err
	}

	var validationErr *syncerr.ValidationError
	if errors.As(err, &validationErr) {
		validationErr.Field = req.FieldID
	}
	return err
}

func fieldPath(entityID, fieldID string) string {
	return fmt.Sprintf("/api/v1/entities/%s/fields/%s", url.PathEscape(entityID), url.PathEscape(fieldID))
}

// doRequest выполняет HTTP запрос и переводит ответ в типизированную ошибку
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &syncerr.NetworkError{Op: method + " " + path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &syncerr.NetworkError{Op: method + " " + path, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method+" "+path, resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(op string, status int, body []byte) error {
	switch {
	case status == http.StatusConflict:
		var cr api.ConflictResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			return fmt.Errorf("failed to decode conflict response: %w", err)
		}
		observed := cr.Version
		return &syncerr.ConflictError{
			RemoteValue:   cr.Value,
			RemoteVersion: cr.Version,
			Token:         models.ConflictToken{Observed: &observed},
		}

	case status == http.StatusUnprocessableEntity:
		var vr api.ValidationResponse
		_ = json.Unmarshal(body, &vr)
		reasons := make([]syncerr.Reason, 0, len(vr.Reasons))
		for _, r := range vr.Reasons {
			reasons = append(reasons, syncerr.Reason{Code: r.Code, Message: r.Message})
		}
		return &syncerr.ValidationError{Reasons: reasons}

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &syncerr.PermissionError{Message: errorMessage(status, body)}

	case status == http.StatusTooManyRequests || status >= 500:
		return &syncerr.NetworkError{Op: op, Err: fmt.Errorf("server error (%d): %s", status, errorMessage(status, body))}

	case status >= 400:
		// Прочие 4xx повторять бессмысленно
		return &syncerr.ValidationError{Reasons: []syncerr.Reason{{
			Code:    "status_" + strconv.Itoa(status),
			Message: errorMessage(status, body),
		}}}

	default:
		return fmt.Errorf("request failed with status %d: %s", status, errorMessage(status, body))
	}
}

func errorMessage(status int, body []byte) string {
	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Message != "" {
			return errResp.Error + ": " + errResp.Message
		}
		return errResp.Error
	}
	if len(body) == 0 {
		return http.StatusText(status)
	}
	return string(body)
}
