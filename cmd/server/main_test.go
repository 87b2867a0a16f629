package main

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"printlink-be/internal/auth"
	"printlink-be/internal/config"
	"printlink-be/internal/order"
	"printlink-be/internal/payment"
	"printlink-be/internal/shop"
	"printlink-be/internal/user"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret     = "jwt-test-secret"
	testWebhookSecret = "whsec_test"
)

// --- Mock Driver for Testing ---
type mockDriver struct{}

func (m *mockDriver) Open(name string) (driver.Conn, error)         { return &mockConn{}, nil }
func (c *mockConn) Prepare(query string) (driver.Stmt, error)       { return &mockStmt{}, nil }
func (c *mockConn) Close() error                                    { return nil }
func (c *mockConn) Begin() (driver.Tx, error)                       { return nil, nil }
func (s *mockStmt) Close() error                                    { return nil }
func (s *mockStmt) NumInput() int                                   { return 0 }
func (s *mockStmt) Exec(args []driver.Value) (driver.Result, error) { return nil, nil }
func (s *mockStmt) Query(args []driver.Value) (driver.Rows, error)  { return nil, nil }

type mockConn struct{}
type mockStmt struct{}

func init() {
	sql.Register("mock_driver_main", &mockDriver{})
}

// --- In-memory collaborators ---

type stubShops struct{}

func (stubShops) GetByID(ctx context.Context, id string) (*shop.Shop, error) {
	if id != "S1" {
		return nil, shop.ErrShopNotFound
	}
	return &shop.Shop{
		ID:         "S1",
		Name:       "Campus Prints",
		PriceBW:    decimal.RequireFromString("2.00"),
		PriceColor: decimal.RequireFromString("10.00"),
		OwnerID:    "owner-1",
	}, nil
}

type stubUsers struct{}

func (stubUsers) FindByID(ctx context.Context, id string) (*user.User, error) {
	return &user.User{ID: id, Email: id + "@example.com", FullName: "Test " + id}, nil
}

type memPayments struct {
	mu       sync.Mutex
	txns     map[string]*payment.Transaction
	events   map[string]int64
	statuses map[int64]string
}

func newMemPayments() *memPayments {
	return &memPayments{
		txns:     map[string]*payment.Transaction{},
		events:   map[string]int64{},
		statuses: map[int64]string{},
	}
}

func (m *memPayments) SaveTransaction(ctx context.Context, t *payment.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txns[t.TxnID]; ok {
		return payment.ErrTransactionExists
	}
	cp := *t
	m.txns[t.TxnID] = &cp
	return nil
}

func (m *memPayments) GetByTxnID(ctx context.Context, txnID string) (*payment.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[txnID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memPayments) UpdateStatus(ctx context.Context, txnID string, status payment.Status, gatewayRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[txnID]
	if !ok {
		return payment.ErrPaymentNotFound
	}
	t.Status, t.GatewayRef = status, gatewayRef
	return nil
}

func (m *memPayments) SettleOrder(ctx context.Context, orderID string, status payment.Status, gatewayRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.OrderID == orderID && t.Status == payment.StatusPending {
			t.Status, t.GatewayRef = status, gatewayRef
		}
	}
	return nil
}

func (m *memPayments) SavePaymentWebhook(ctx context.Context, provider, eventID, eventType, orderID string, payload json.RawMessage, signatureValid bool) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := provider + ":" + eventID
	if id, ok := m.events[key]; ok {
		if m.statuses[id] == "processed" {
			return 0, true, nil
		}
		return id, false, nil
	}
	id := int64(len(m.events) + 1)
	m.events[key] = id
	m.statuses[id] = "received"
	return id, false, nil
}

func (m *memPayments) MarkWebhookProcessed(ctx context.Context, webhookID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[webhookID] = "processed"
	return nil
}

func (m *memPayments) MarkWebhookFailed(ctx context.Context, webhookID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[webhookID] = "failed: " + reason
	return nil
}

func (m *memPayments) transactionsFor(orderID string) []payment.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payment.Transaction
	for _, t := range m.txns {
		if t.OrderID == orderID {
			out = append(out, *t)
		}
	}
	return out
}

// --- Helpers ---

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppPort:   "8080",
		AppEnv:    "test",
		SiteURL:   "http://app.test",
		JWTSecret: testJWTSecret,
		PayU: config.PayU{
			MerchantKey:   "gtKFFx",
			Salt:          "eCwWELxi",
			WebhookSecret: testWebhookSecret,
		},
		Storage: config.Storage{
			Dir:        t.TempDir(),
			SigningKey: "storage-test-key",
			PublicURL:  "http://api.test",
			AccessTTL:  time.Hour,
		},
		Notify: config.Notify{Workers: 1, QueueSize: 16},
	}
}

func bearer(t *testing.T, req *http.Request, userID string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken([]byte(testJWTSecret), auth.User{
		ID:       userID,
		Email:    userID + "@example.com",
		FullName: "Test " + userID,
	}, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func postJSON(path string, v interface{}) *http.Request {
	b, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func pdfDocument(size int) []byte {
	doc := []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	return append(doc, bytes.Repeat([]byte{' '}, size-len(doc))...)
}

func uploadRequest(t *testing.T, fileName string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("shopId", "S1"))
	require.NoError(t, mw.WriteField("pages", "10"))
	require.NoError(t, mw.WriteField("copies", "2"))

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func capturedEvent(orderID string, minor int64) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_e2e0001",
			"order_id": "order_gw_1",
			"amount": %d,
			"currency": "INR",
			"notes": {"upload_id": %q}
		}}}
	}`, minor, orderID))
}

// --- Tests ---

func TestSetupRouter(t *testing.T) {
	srv := newServer(testConfig(t), nil)
	defer srv.Close(context.Background())

	t.Run("Health Check", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "OK")
		assert.Contains(t, rr.Body.String(), "notifications_sent")
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/uploads", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("Preflight", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodOptions, "/orders/access", nil))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "http://app.test", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Request ID", func(t *testing.T) {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	})

	t.Run("Rejects Bad Token", func(t *testing.T) {
		req := postJSON("/orders/access", map[string]string{"orderId": "O1"})
		req.Header.Set("Authorization", "Bearer not-a-token")
		assert.Equal(t, http.StatusUnauthorized, serve(srv, req).Code)
	})

	t.Run("Access Requires Caller", func(t *testing.T) {
		rr := serve(srv, postJSON("/orders/access", map[string]string{"orderId": "O1"}))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "unauthorized", jsonBody(t, rr)["code"])
	})

	t.Run("Webhook Without Signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(capturedEvent("O1", 4000)))
		rr := serve(srv, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_signature", jsonBody(t, rr)["code"])
	})
}

func TestNewServer(t *testing.T) {
	db, err := sql.Open("mock_driver_main", "")
	assert.NoError(t, err)

	cfg := testConfig(t)
	srv := newServer(cfg, db)
	defer srv.Close(context.Background())

	assert.NotNil(t, srv)
	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewServer_MissingStorageKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.SigningKey = ""

	srv := assemble(cfg, repositories{
		users:    stubUsers{},
		shops:    stubShops{},
		orders:   order.NewMemoryRepository(),
		payments: newMemPayments(),
	})
	defer srv.Close(context.Background())

	rr := serve(srv, bearer(t, uploadRequest(t, "report.pdf", pdfDocument(2048)), "user-1"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := jsonBody(t, rr)
	assert.Equal(t, "misconfigured", body["code"])
	assert.NotContains(t, rr.Body.String(), "STORAGE_SIGNING_KEY")

	assert.Equal(t, http.StatusNotFound, serve(srv, httptest.NewRequest(http.MethodGet, "/files/user-1/x.pdf", nil)).Code)
}

func TestRun(t *testing.T) {
	origInitDB := initDBFunc
	defer func() { initDBFunc = origInitDB }()
	initDBFunc = func(cfg *config.Config) *sql.DB {
		db, _ := sql.Open("mock_driver_main", "")
		return db
	}

	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()
	var addr string
	startServerFunc = func(a string, handler http.Handler) error {
		addr = a
		return nil
	}

	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_NAME", "db")
	t.Setenv("STORAGE_DIR", t.TempDir())
	t.Setenv("STORAGE_SIGNING_KEY", "k")

	assert.NoError(t, run())
	assert.Equal(t, ":8080", addr)
}

// TestPickupFlow walks one order from upload to collection over HTTP.
func TestPickupFlow(t *testing.T) {
	cfg := testConfig(t)
	orders := order.NewMemoryRepository()
	payments := newMemPayments()

	srv := assemble(cfg, repositories{
		users:    stubUsers{},
		shops:    stubShops{},
		orders:   orders,
		payments: payments,
	}, order.WithCodeGenerator(func() (string, error) { return "483920", nil }))
	defer srv.Close(context.Background())

	// upload: 10 pages x 2 copies at 2.00
	rr := serve(srv, bearer(t, uploadRequest(t, "report.pdf", pdfDocument(2<<20)), "user-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	up := jsonBody(t, rr)
	orderID := up["orderId"].(string)
	assert.Equal(t, "report.pdf", up["fileName"])
	assert.EqualValues(t, 2<<20, up["fileSize"])
	assert.Equal(t, "40.00", up["amount"])

	stored, err := orders.GetByID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingPayment, stored.Status)

	// initiate
	form := url.Values{"orderId": {orderID}, "amount": {"40.00"}, "phone": {"9999999999"}}
	req := httptest.NewRequest(http.MethodPost, "/payments/initiate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = serve(srv, bearer(t, req, "user-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), `name="hash"`)
	require.Len(t, payments.transactionsFor(orderID), 1)

	// forged webhook changes nothing
	body := capturedEvent(orderID, 4000)
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", payment.SignWebhook("wrong-secret", body))
	assert.Equal(t, http.StatusBadRequest, serve(srv, req).Code)
	stored, _ = orders.GetByID(context.Background(), orderID)
	assert.Equal(t, order.StatusPendingPayment, stored.Status)

	// signed webhook
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", payment.SignWebhook(testWebhookSecret, body))
	req.Header.Set("X-Razorpay-Event-Id", "evt_e2e_1")
	rr = serve(srv, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "processed", jsonBody(t, rr)["status"])

	stored, _ = orders.GetByID(context.Background(), orderID)
	assert.Equal(t, order.StatusPrinting, stored.Status)
	assert.Equal(t, payment.StatusCaptured, payments.transactionsFor(orderID)[0].Status)

	// redelivery is acknowledged
	req = httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", payment.SignWebhook(testWebhookSecret, body))
	req.Header.Set("X-Razorpay-Event-Id", "evt_e2e_1")
	rr = serve(srv, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "duplicate", jsonBody(t, rr)["status"])

	// shop owner downloads and completes
	rr = serve(srv, bearer(t, postJSON("/orders/access", map[string]string{"orderId": orderID}), "owner-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	link, err := url.Parse(jsonBody(t, rr)["url"].(string))
	require.NoError(t, err)
	file := serve(srv, httptest.NewRequest(http.MethodGet, link.RequestURI(), nil))
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, 2<<20, file.Body.Len())

	assert.Equal(t, http.StatusUnauthorized,
		serve(srv, bearer(t, postJSON("/orders/complete", map[string]string{"orderId": orderID}), "user-1")).Code)

	rr = serve(srv, bearer(t, postJSON("/orders/complete", map[string]string{"orderId": orderID}), "owner-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	completed := jsonBody(t, rr)["order"].(map[string]interface{})
	assert.Equal(t, "completed", completed["status"])
	assert.NotContains(t, completed, "pickupCode")

	// customer sees the code
	rr = serve(srv, bearer(t, httptest.NewRequest(http.MethodGet, "/orders/"+orderID, nil), "user-1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "483920", jsonBody(t, rr)["order"].(map[string]interface{})["pickupCode"])

	// wrong code, presented at the counter
	rr = serve(srv, bearer(t, postJSON("/orders/redeem", map[string]string{"orderId": orderID, "code": "483910"}), "owner-1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_code", jsonBody(t, rr)["code"])
	stored, _ = orders.GetByID(context.Background(), orderID)
	assert.Equal(t, order.StatusCompleted, stored.Status)

	// right code
	rr = serve(srv, bearer(t, postJSON("/orders/redeem", map[string]string{"orderId": orderID, "code": "483920"}), "owner-1"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "done", jsonBody(t, rr)["order"].(map[string]interface{})["status"])

	stored, _ = orders.GetByID(context.Background(), orderID)
	assert.Equal(t, order.StatusDone, stored.Status)
	assert.Nil(t, stored.PickupCode)

	// single use
	rr = serve(srv, bearer(t, postJSON("/orders/redeem", map[string]string{"orderId": orderID, "code": "483920"}), "owner-1"))
	assert.Equal(t, http.StatusConflict, rr.Code)
}
