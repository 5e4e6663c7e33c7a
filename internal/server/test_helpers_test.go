package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/database"
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("meal-%02d", p.next), nil
}

func newTestRepository(t *testing.T) *meals.Repository {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "mealog.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	store, err := meals.NewStore(meals.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	clockValue := int64(1700000000000)
	repository, err := meals.NewRepository(meals.RepositoryConfig{
		Store: store,
		Clock: func() time.Time {
			clockValue++
			return time.UnixMilli(clockValue)
		},
		IDProvider: &sequenceIDProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct repository: %v", err)
	}
	t.Cleanup(repository.Close)
	if err := repository.Load(context.Background()); err != nil {
		t.Fatalf("failed to load repository: %v", err)
	}
	return repository
}

func newTestHandler(t *testing.T, repository *meals.Repository, tokens TokenValidator) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(Dependencies{
		Meals:  repository,
		Tokens: tokens,
		Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return handler
}

func performJSONRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	request := httptest.NewRequest(method, path, &payload)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
