package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/client/upload"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
	"github.com/iudanet/fieldsync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

// TestClient_Save проверяет успешную условную запись
func TestClient_Save(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/entities/doc1/fields/title", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req api.PutFieldRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Value)
		assert.Equal(t, int64(4), req.Version)
		assert.Equal(t, "op-1", req.OperationID)

		observed := int64(4)
		_ = json.NewEncoder(w).Encode(api.PutFieldResponse{
			ObservedVersion: &observed,
			Value:           "hello",
			Version:         5,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("secret")

	res, err := client.Save(context.Background(), models.SaveRequest{
		EntityID: "doc1", FieldID: "title", Value: "hello", Version: 4, OperationID: "op-1",
	})
	require.NoError(t, err)
	require.NotNil(t, res.ObservedVersion)
	assert.Equal(t, int64(4), *res.ObservedVersion)
	assert.Equal(t, int64(5), res.Version)
	assert.Equal(t, "hello", res.Value)
}

// TestClient_Save_Errors проверяет маппинг статусов в типы ошибок
func TestClient_Save_Errors(t *testing.T) {
	tests := []struct {
		body     any
		check    func(t *testing.T, err error)
		name     string
		status   int
		wantKind syncerr.Kind
	}{
		{
			name:     "conflict",
			status:   http.StatusConflict,
			body:     api.ConflictResponse{Error: "version mismatch", Value: "theirs", Version: 7},
			wantKind: syncerr.KindConflict,
			check: func(t *testing.T, err error) {
				var ce *syncerr.ConflictError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, "theirs", ce.RemoteValue)
				assert.Equal(t, int64(7), ce.RemoteVersion)
				assert.Equal(t, "mine", ce.LocalValue)
				assert.Equal(t, int64(4), ce.Token.Expected)
				require.NotNil(t, ce.Token.Observed)
				assert.Equal(t, int64(7), *ce.Token.Observed)
			},
		},
		{
			name:   "validation",
			status: http.StatusUnprocessableEntity,
			body: api.ValidationResponse{Error: "rejected", Reasons: []api.Reason{
				{Code: "too_long", Message: "value must not exceed 3 characters"},
			}},
			wantKind: syncerr.KindValidation,
			check: func(t *testing.T, err error) {
				var ve *syncerr.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "title", ve.Field)
				require.Len(t, ve.Reasons, 1)
				assert.Equal(t, "too_long", ve.Reasons[0].Code)
			},
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     api.ErrorResponse{Error: "forbidden", Message: "read-only"},
			wantKind: syncerr.KindPermission,
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "permission denied: forbidden: read-only")
			},
		},
		{name: "unauthorized", status: http.StatusUnauthorized, body: api.ErrorResponse{Error: "unauthorized"}, wantKind: syncerr.KindPermission},
		{name: "server error", status: http.StatusInternalServerError, body: api.ErrorResponse{Error: "boom"}, wantKind: syncerr.KindNetwork},
		{name: "rate limited", status: http.StatusTooManyRequests, body: api.ErrorResponse{Error: "slow down"}, wantKind: syncerr.KindNetwork},
		{name: "bad request", status: http.StatusBadRequest, body: api.ErrorResponse{Error: "bad"}, wantKind: syncerr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL).Save(context.Background(), models.SaveRequest{
				EntityID: "doc1", FieldID: "title", Value: "mine", Version: 4,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, syncerr.Classify(err))
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

// TestClient_Save_Unreachable проверяет, что недоступный сервер считается сетевой ошибкой
func TestClient_Save_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url).Save(context.Background(), models.SaveRequest{EntityID: "a", FieldID: "b"})
	require.Error(t, err)
	assert.Equal(t, syncerr.KindNetwork, syncerr.Classify(err))
	assert.True(t, syncerr.Retryable(err))
}

func TestClient_Save_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL).Save(ctx, models.SaveRequest{EntityID: "a", FieldID: "b"})
	require.Error(t, err)
	assert.False(t, syncerr.Retryable(err))
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/entities/doc%201/fields/title", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(api.FieldResponse{
			EntityID: "doc 1", FieldID: "title", Value: "current", Version: 9,
		})
	}))
	defer server.Close()

	field, err := NewClient(server.URL).Get(context.Background(), "doc 1", "title")
	require.NoError(t, err)
	assert.Equal(t, models.EditableField{EntityID: "doc 1", FieldID: "title", Value: "current", Version: 9}, field)
}

func TestClient_Health(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.NoError(t, client.Health(context.Background()))

	healthy.Store(false)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, syncerr.KindNetwork, syncerr.Classify(err))
}

func TestClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/blobs", r.URL.Path)
		assert.Equal(t, "notes.txt", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(body))

		_ = json.NewEncoder(w).Encode(api.BlobResponse{Ref: "blob-42", Size: int64(len(body))})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o600))

	var sent atomic.Int64
	ref, err := NewClient(server.URL).Upload(context.Background(),
		upload.File{Name: "notes.txt", Path: path, Size: 11},
		func(n int64) { sent.Store(n) })
	require.NoError(t, err)
	assert.Equal(t, "blob-42", ref)
	assert.Equal(t, int64(11), sent.Load())
}

func TestClient_Upload_MissingFile(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:0").Upload(context.Background(),
		upload.File{Name: "gone", Path: filepath.Join(t.TempDir(), "gone")}, nil)
	require.Error(t, err)
	assert.Equal(t, syncerr.KindValidation, syncerr.Classify(err))
}
