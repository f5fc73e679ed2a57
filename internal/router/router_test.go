package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ecom_ops_backend/internal/config"
	"ecom_ops_backend/internal/repositories/memory"
	"ecom_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const testAPIKey = "automation-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             "router-test-secret-0123",
		JWTExpiration:         time.Hour,
		AutomationAPIKey:      testAPIKey,
		BusinessTimezone:      "UTC",
		AffiliateRate:         decimal.RequireFromString("0.10"),
		LowStockThreshold:     5,
		SyncBatchSize:         25,
		RegexMaxPatternLength: 256,
	}
}

func newTestEngine(t *testing.T, seed *memory.Seed) *gin.Engine {
	t.Helper()
	store, err := memory.NewStore(seed)
	if err != nil {
		t.Fatalf("memory.NewStore: %v", err)
	}
	return New(testConfig(), Dependencies{Store: store, Clock: utils.FixedClock("2024-02-01")})
}

type request struct {
	method  string
	target  string
	body    []byte
	ctype   string
	token   string
	headers map[string]string
}

func do(engine *gin.Engine, r request) *httptest.ResponseRecorder {
	req := httptest.NewRequest(r.method, r.target, bytes.NewReader(r.body))
	if r.ctype != "" {
		req.Header.Set("Content-Type", r.ctype)
	} else if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type apiError struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e apiError
	decode(t, w, &e)
	return e.Error.Code
}

// login registers the first operator (who becomes admin) and returns a token.
func login(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	creds := []byte(`{"username":"ops","password":"correct-horse"}`)
	if w := do(engine, request{method: http.MethodPost, target: "/auth/register", body: creds}); w.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", w.Code, w.Body.String())
	}
	w := do(engine, request{method: http.MethodPost, target: "/auth/login", body: creds})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, w, &resp)
	if resp.AccessToken == "" {
		t.Fatal("login returned no token")
	}
	return resp.AccessToken
}

func TestPingAndRequestID(t *testing.T) {
	engine := newTestEngine(t, nil)

	w := do(engine, request{method: http.MethodGet, target: "/ping"})
	if w.Code != http.StatusOK {
		t.Fatalf("ping status = %d", w.Code)
	}
	if w.Header().Get(utils.RequestIDHeader) == "" {
		t.Fatal("response is missing a request id")
	}

	w = do(engine, request{method: http.MethodGet, target: "/ping", headers: map[string]string{utils.RequestIDHeader: "abc-123"}})
	if got := w.Header().Get(utils.RequestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q, want the caller's", got)
	}
}

func TestOrderWebhook(t *testing.T) {
	engine := newTestEngine(t, nil)
	payload := []byte(`{"order_number":"1001","line_items":"[{\"name\":\"Widget\",\"quantity\":2,\"price\":\"9.99\"}]"}`)

	if w := do(engine, request{method: http.MethodPost, target: "/webhooks/order", body: payload}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unkeyed webhook status = %d, want 401", w.Code)
	}

	w := do(engine, request{method: http.MethodPost, target: "/webhooks/order", body: payload,
		headers: map[string]string{"x-api-key": testAPIKey}})
	if w.Code != http.StatusOK {
		t.Fatalf("webhook status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		Status      string          `json:"status"`
		OrderNumber string          `json:"order_number"`
		Total       decimal.Decimal `json:"total"`
		Profit      decimal.Decimal `json:"profit"`
		LineItems   []struct {
			QtyOrdered int `json:"qty_ordered"`
		} `json:"line_items"`
	}
	decode(t, w, &res)
	if res.Status != "ok" || res.OrderNumber != "Order #1001" || !res.Total.Equal(decimal.RequireFromString("19.98")) ||
		!res.Profit.Equal(decimal.RequireFromString("19.98")) || len(res.LineItems) != 1 {
		t.Fatalf("unexpected webhook result: %s", w.Body.String())
	}

	// Same payload again, keyed by query parameter.
	if w := do(engine, request{method: http.MethodPost, target: "/webhooks/order?api_key=" + testAPIKey, body: payload}); w.Code != http.StatusOK {
		t.Fatalf("repeat webhook status = %d", w.Code)
	}

	token := login(t, engine)
	w = do(engine, request{method: http.MethodGet, target: "/orders", token: token})
	var list struct {
		Total int `json:"total"`
	}
	decode(t, w, &list)
	if w.Code != http.StatusOK || list.Total != 1 {
		t.Fatalf("orders after repeat ingest: status %d body %s", w.Code, w.Body.String())
	}

	w = do(engine, request{method: http.MethodGet, target: "/orders/" + url.PathEscape("Order #1001"), token: token})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Widget") {
		t.Fatalf("order detail status %d body %s", w.Code, w.Body.String())
	}
	if w := do(engine, request{method: http.MethodGet, target: "/orders/9999", token: token}); w.Code != http.StatusNotFound {
		t.Fatalf("missing order status = %d, want 404", w.Code)
	}
}

func TestOrderWebhookForm(t *testing.T) {
	engine := newTestEngine(t, nil)
	form := url.Values{}
	form.Set("order_number", "#2002")
	form.Set("line_items", `[{"name":"Gadget","quantity":"3","price":"5"}]`)

	w := do(engine, request{method: http.MethodPost, target: "/webhooks/order", body: []byte(form.Encode()),
		ctype: "application/x-www-form-urlencoded", headers: map[string]string{"x-api-key": testAPIKey}})
	if w.Code != http.StatusOK {
		t.Fatalf("form webhook status = %d: %s", w.Code, w.Body.String())
	}
	var res struct {
		OrderNumber string          `json:"order_number"`
		Total       decimal.Decimal `json:"total"`
	}
	decode(t, w, &res)
	if res.OrderNumber != "Order #2002" || !res.Total.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected form result: %s", w.Body.String())
	}

	bad := do(engine, request{method: http.MethodPost, target: "/webhooks/order", body: []byte(`{"line_items":[]}`),
		headers: map[string]string{"x-api-key": testAPIKey}})
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("payload without identity status = %d, want 400", bad.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	engine := newTestEngine(t, nil)

	if w := do(engine, request{method: http.MethodGet, target: "/dashboard/summary"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous dashboard status = %d, want 401", w.Code)
	}

	token := login(t, engine)

	second := []byte(`{"username":"other","password":"another-pass"}`)
	if w := do(engine, request{method: http.MethodPost, target: "/auth/register", body: second}); w.Code != http.StatusForbidden {
		t.Fatalf("anonymous second registration status = %d, want 403", w.Code)
	}
	if w := do(engine, request{method: http.MethodPost, target: "/auth/register", body: second, token: token}); w.Code != http.StatusCreated {
		t.Fatalf("admin registration status = %d: %s", w.Code, w.Body.String())
	}
	if w := do(engine, request{method: http.MethodPost, target: "/auth/login", body: []byte(`{"username":"ops","password":"wrong-password"}`)}); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", w.Code)
	}

	w := do(engine, request{method: http.MethodGet, target: "/auth/me", token: token})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ops"`) {
		t.Fatalf("me status %d body %s", w.Code, w.Body.String())
	}

	w = do(engine, request{method: http.MethodGet, target: "/dashboard/summary?start_date=2024-01-01&end_date=2024-01-31", token: token})
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d: %s", w.Code, w.Body.String())
	}
	if w := do(engine, request{method: http.MethodGet, target: "/dashboard/summary?start_date=01-01-2024", token: token}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", w.Code)
	}
}

func multipartFile(t *testing.T, filename, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func TestImportWorkflow(t *testing.T) {
	engine := newTestEngine(t, &memory.Seed{Rules: []memory.SeedRule{
		{Pattern: "SHIPPO", Category: "Shipping", Priority: 10},
	}})
	token := login(t, engine)

	body, ctype := multipartFile(t, "jan.csv", "Date,Merchant Name,Amount\n2024-01-05,SHIPPO INC,-12.50\n2024-01-06,COFFEE,4.00\n")
	w := do(engine, request{method: http.MethodPost, target: "/expenses/import", body: body, ctype: ctype, token: token})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	var staged struct {
		ImportID        int64 `json:"import_id"`
		TotalLines      int   `json:"total_lines"`
		AutoCategorized int   `json:"auto_categorized"`
		Uncategorized   int   `json:"uncategorized"`
	}
	decode(t, w, &staged)
	if staged.TotalLines != 2 || staged.AutoCategorized != 1 || staged.Uncategorized != 1 {
		t.Fatalf("unexpected staging: %s", w.Body.String())
	}

	base := "/expenses/import/" + utils.Int64ToStr(staged.ImportID)
	w = do(engine, request{method: http.MethodPost, target: base + "/approve", token: token})
	var approved struct {
		Approved int    `json:"approved"`
		Status   string `json:"status"`
	}
	decode(t, w, &approved)
	if w.Code != http.StatusOK || approved.Approved != 1 || approved.Status != "partial" {
		t.Fatalf("approve status %d body %s", w.Code, w.Body.String())
	}

	w = do(engine, request{method: http.MethodPost, target: base + "/approve", body: []byte(`{}`), token: token})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != utils.ErrCodeNothingToApprove {
		t.Fatalf("second approve status %d body %s", w.Code, w.Body.String())
	}

	w = do(engine, request{method: http.MethodGet, target: base, token: token})
	var batch struct {
		Lines []struct {
			ID       int64   `json:"id"`
			Category *string `json:"category"`
		} `json:"lines"`
	}
	decode(t, w, &batch)
	if len(batch.Lines) != 2 {
		t.Fatalf("batch detail: %s", w.Body.String())
	}
	coffee := batch.Lines[1]
	lineURL := base + "/lines/" + utils.Int64ToStr(coffee.ID)
	if w := do(engine, request{method: http.MethodPatch, target: lineURL, body: []byte(`{"category":"Meals"}`), token: token}); w.Code != http.StatusOK {
		t.Fatalf("set category status = %d: %s", w.Code, w.Body.String())
	}
	w = do(engine, request{method: http.MethodPost, target: base + "/approve", body: []byte(`{"line_ids":[` + utils.Int64ToStr(coffee.ID) + `]}`), token: token})
	decode(t, w, &approved)
	if w.Code != http.StatusOK || approved.Approved != 1 || approved.Status != "approved" {
		t.Fatalf("subset approve status %d body %s", w.Code, w.Body.String())
	}

	w = do(engine, request{method: http.MethodGet, target: "/expenses?category=Meals", token: token})
	var expenses struct {
		Total int `json:"total"`
	}
	decode(t, w, &expenses)
	if expenses.Total != 1 {
		t.Fatalf("expected the approved line as an expense: %s", w.Body.String())
	}

	if w := do(engine, request{method: http.MethodGet, target: "/expenses/import/999", token: token}); w.Code != http.StatusNotFound {
		t.Fatalf("missing batch status = %d, want 404", w.Code)
	}
}

func TestImportUploadErrors(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := login(t, engine)

	if w := do(engine, request{method: http.MethodPost, target: "/expenses/import", body: []byte(`{}`), token: token}); w.Code != http.StatusBadRequest {
		t.Fatalf("upload without file status = %d, want 400", w.Code)
	}

	body, ctype := multipartFile(t, "odd.csv", "Foo,Bar\n1,2\n")
	w := do(engine, request{method: http.MethodPost, target: "/expenses/import", body: body, ctype: ctype, token: token})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != utils.ErrCodeMissingColumns {
		t.Fatalf("missing columns status %d body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"headers":["Foo","Bar"]`) {
		t.Fatalf("detected headers not reported: %s", w.Body.String())
	}

	body, ctype = multipartFile(t, "empty.csv", "Date,Description,Amount\n")
	if w := do(engine, request{method: http.MethodPost, target: "/expenses/import", body: body, ctype: ctype, token: token}); w.Code != http.StatusBadRequest {
		t.Fatalf("header-only upload status = %d, want 400", w.Code)
	}
}

func TestRuleRoutes(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := login(t, engine)

	if w := do(engine, request{method: http.MethodPost, target: "/expenses/rules", body: []byte(`{"pattern":"ADOBE"}`), token: token}); w.Code != http.StatusBadRequest {
		t.Fatalf("rule without category status = %d, want 400", w.Code)
	}
	if w := do(engine, request{method: http.MethodPost, target: "/expenses/rules", body: []byte(`{"pattern":"(","pattern_type":"regex","category":"X"}`), token: token}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad regex status = %d, want 400", w.Code)
	}

	w := do(engine, request{method: http.MethodPost, target: "/expenses/rules", body: []byte(`{"pattern":"ADOBE","category":"Software"}`), token: token})
	if w.Code != http.StatusCreated {
		t.Fatalf("create rule status = %d: %s", w.Code, w.Body.String())
	}
	var rule struct {
		ID          int64  `json:"id"`
		PatternType string `json:"pattern_type"`
	}
	decode(t, w, &rule)
	if rule.PatternType != "contains" {
		t.Fatalf("pattern_type default = %q", rule.PatternType)
	}

	w = do(engine, request{method: http.MethodPost, target: "/expenses/rules/test", body: []byte(`{"description":"Adobe Creative Cloud"}`), token: token})
	var preview struct {
		Matched  bool    `json:"matched"`
		Category *string `json:"category"`
	}
	decode(t, w, &preview)
	if !preview.Matched || preview.Category == nil || *preview.Category != "Software" {
		t.Fatalf("rule preview: %s", w.Body.String())
	}

	ruleURL := "/expenses/rules/" + utils.Int64ToStr(rule.ID)
	if w := do(engine, request{method: http.MethodPatch, target: ruleURL, body: []byte(`{"is_active":false}`), token: token}); w.Code != http.StatusOK {
		t.Fatalf("patch rule status = %d: %s", w.Code, w.Body.String())
	}
	if w := do(engine, request{method: http.MethodDelete, target: ruleURL, token: token}); w.Code != http.StatusNoContent {
		t.Fatalf("delete rule status = %d", w.Code)
	}
	if w := do(engine, request{method: http.MethodDelete, target: ruleURL, token: token}); w.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	engine := newTestEngine(t, &memory.Seed{Orders: []memory.SeedOrder{
		{OrderNumber: "Order #1", WooOrderID: 1, CouponCode: "SAM", Lines: []memory.SeedLine{{Name: "W", Quantity: 1, Price: "100"}}},
	}})
	key := map[string]string{"x-api-key": testAPIKey}

	if w := do(engine, request{method: http.MethodPost, target: "/admin/backfill-affiliate-expenses"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unkeyed admin status = %d, want 401", w.Code)
	}

	w := do(engine, request{method: http.MethodPost, target: "/admin/backfill-affiliate-expenses", headers: key})
	var backfill struct {
		Created int `json:"created"`
	}
	decode(t, w, &backfill)
	if w.Code != http.StatusOK || backfill.Created != 1 {
		t.Fatalf("backfill status %d body %s", w.Code, w.Body.String())
	}

	w = do(engine, request{method: http.MethodGet, target: "/admin/sync-shipping-from-shippo", headers: key})
	if w.Code != http.StatusInternalServerError || errorCode(t, w) != utils.ErrCodeUpstreamError {
		t.Fatalf("unconfigured shippo status %d body %s", w.Code, w.Body.String())
	}
	if w := do(engine, request{method: http.MethodGet, target: "/admin/sync-shipping-from-shippo?start_date=yesterday", headers: key}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad start_date status = %d, want 400", w.Code)
	}
	if w := do(engine, request{method: http.MethodPost, target: "/admin/sync-order/abc", headers: key}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad woo_id status = %d, want 400", w.Code)
	}

	// Operators may call admin passes with their token.
	token := login(t, engine)
	w = do(engine, request{method: http.MethodPost, target: "/admin/recompute-qty-sold", token: token})
	if w.Code != http.StatusOK {
		t.Fatalf("recompute with token status = %d: %s", w.Code, w.Body.String())
	}
}

func TestCostLookupAndExpenseRoutes(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := login(t, engine)

	w := do(engine, request{method: http.MethodPost, target: "/cost-lookups", body: []byte(`{"name":"Serum","strength":"10mg","cost_per_unit":"4.25"}`), token: token})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert cost status = %d: %s", w.Code, w.Body.String())
	}
	var row struct {
		ID int64 `json:"id"`
	}
	decode(t, w, &row)

	w = do(engine, request{method: http.MethodGet, target: "/cost-lookups", token: token})
	var rows []json.RawMessage
	decode(t, w, &rows)
	if len(rows) != 1 {
		t.Fatalf("cost table: %s", w.Body.String())
	}
	if w := do(engine, request{method: http.MethodDelete, target: "/cost-lookups/" + utils.Int64ToStr(row.ID), token: token}); w.Code != http.StatusNoContent {
		t.Fatalf("delete cost status = %d", w.Code)
	}

	w = do(engine, request{method: http.MethodPost, target: "/expenses", body: []byte(`{"description":"Domain renewal","amount":"12.5","category":"software"}`), token: token})
	if w.Code != http.StatusCreated {
		t.Fatalf("create expense status = %d: %s", w.Code, w.Body.String())
	}
	var expense struct {
		ID          int64  `json:"id"`
		ExpenseDate string `json:"expense_date"`
	}
	decode(t, w, &expense)
	if expense.ExpenseDate != "2024-02-01" {
		t.Fatalf("expense date default = %q", expense.ExpenseDate)
	}
	if w := do(engine, request{method: http.MethodPost, target: "/expenses", body: []byte(`{"description":"x","amount":"-1"}`), token: token}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative expense status = %d, want 400", w.Code)
	}
	if w := do(engine, request{method: http.MethodDelete, target: "/expenses/" + utils.Int64ToStr(expense.ID), token: token}); w.Code != http.StatusNoContent {
		t.Fatalf("delete expense status = %d", w.Code)
	}

	if w := do(engine, request{method: http.MethodGet, target: "/products", token: token}); w.Code != http.StatusOK {
		t.Fatalf("products status = %d", w.Code)
	}
}
