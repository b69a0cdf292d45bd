package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/marketlane/backoffice/internal/audit/domain"
	auditrepository "github.com/marketlane/backoffice/internal/audit/repository"
	auditservice "github.com/marketlane/backoffice/internal/audit/service"
	"github.com/marketlane/backoffice/internal/clock"
	"github.com/marketlane/backoffice/internal/config"
	"github.com/marketlane/backoffice/internal/metrics"
	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
	rulerepository "github.com/marketlane/backoffice/internal/rule/repository"
	ruleservice "github.com/marketlane/backoffice/internal/rule/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ruledomain.Rule{}, &ruledomain.RuleHistory{}, &auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()

	ruleSvc := ruleservice.New(ruleservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  rulerepository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	cfg := config.Config{AppName: "backoffice", Environment: "test", HTTPAddr: ":0"}
	collector := metrics.NewCollector()
	engine := NewEngine(cfg, log, collector)
	NewServer(Params{
		Cfg:      cfg,
		Log:      log,
		Engine:   engine,
		RuleSvc:  ruleSvc,
		AuditSvc: auditSvc,
		Metrics:  collector,
	})
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-User-Id", "admin-1")
	req.Header.Set("X-Admin-User-Email", "admin@example.test")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCommissionRuleCRUDOverHTTP(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/commission-rules", `{
		"name": "standard commission",
		"seller_id": "seller-x",
		"category_id": "cat-electronics",
		"rate": 8,
		"effective_from": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, float64(1), created["version"])
	assert.Equal(t, "admin-1", created["created_by"])

	// Same scope and window: rejected with the conflicting rule attached.
	w = doJSON(t, engine, http.MethodPost, "/api/v1/commission-rules", `{
		"name": "competing commission",
		"seller_id": "seller-x",
		"category_id": "cat-electronics",
		"rate": 12,
		"effective_from": "2024-06-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	conflictErr := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "conflict", conflictErr["type"])
	conflicting := conflictErr["conflicting_rules"].([]any)
	require.Len(t, conflicting, 1)
	assert.Equal(t, id, conflicting[0].(map[string]any)["id"])

	w = doJSON(t, engine, http.MethodGet, "/api/v1/commission-rules/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, engine, http.MethodPatch, "/api/v1/commission-rules/"+id, `{"rate": 9, "reason": "negotiated"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(2), updated["version"])
	assert.Equal(t, float64(9), updated["rate"])

	w = doJSON(t, engine, http.MethodDelete, "/api/v1/commission-rules/"+id, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, engine, http.MethodGet, "/api/v1/commission-rules/"+id, "")
	require.Equal(t, http.StatusNotFound, w.Code)

	// History survives the delete: created, updated, deleted.
	w = doJSON(t, engine, http.MethodGet, "/api/v1/commission-rules/"+id+"/history", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	history := decodeBody(t, w)["data"].(map[string]any)
	assert.Nil(t, history["current_rule"])
	entries := history["entries"].([]any)
	require.Len(t, entries, 3)
	assert.Equal(t, "deleted", entries[2].(map[string]any)["change_type"])

	// Every successful mutation also landed an audit row.
	w = doJSON(t, engine, http.MethodGet, "/api/v1/audit-logs", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	auditData := decodeBody(t, w)["data"].(map[string]any)
	assert.Len(t, auditData["audit_logs"].([]any), 3)
}

func TestCommissionRuleValidationFailsWith400(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/commission-rules", `{
		"name": "bad rule",
		"seller_id": "seller-x",
		"rate": 140,
		"effective_from": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	payload := decodeBody(t, w)["error"].(map[string]any)
	assert.Equal(t, "validation_error", payload["type"])

	fields := payload["errors"].([]any)
	require.NotEmpty(t, fields)
	assert.Equal(t, "rate", fields[0].(map[string]any)["field"])
}

func TestResolveCommissionRateOverHTTP(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/commission-rules", `{
		"name": "general commission",
		"seller_id": "seller-x",
		"rate": 8,
		"effective_from": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, engine, http.MethodGet, "/api/v1/commission-rules/resolve?seller_id=seller-x&category_id=cat-books", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["matched"])
	assert.Equal(t, float64(8), data["rate"])

	// No rule configured: 200 with matched=false, never a 404.
	w = doJSON(t, engine, http.MethodGet, "/api/v1/commission-rules/resolve?seller_id=seller-unknown", "")
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, false, data["matched"])
}

func TestTaxRuleCountryNormalizationOverHTTP(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/tax-rules", `{
		"name": "german vat",
		"country_code": "de",
		"rate": 19,
		"effective_from": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "DE", created["scope_key"])

	w = doJSON(t, engine, http.MethodGet, "/api/v1/tax-rules/resolve?country_code=DE", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, data["matched"])
	assert.Equal(t, float64(19), data["rate"])
}

func TestTaxRuleMissingCountryIs400(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/tax-rules", `{
		"name": "vat",
		"rate": 19,
		"effective_from": "2024-01-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestUnknownRuleIDIs404(t *testing.T) {
	engine := setupRouter(t)

	w := doJSON(t, engine, http.MethodGet, "/api/v1/commission-rules/1234567890123456789", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
