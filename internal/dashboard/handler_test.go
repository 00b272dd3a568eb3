package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dmsd/dmsd/internal/auth"
	"github.com/dmsd/dmsd/internal/nav"
)

type handlerFixture struct {
	*fixture
	app *fiber.App
	hub *Hub
	id  string
}

func setupHandler(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	hub := NewHub(testContract, f.deps(), nil, time.Hour, nil)
	t.Cleanup(func() { hub.Shutdown(ctx) }) // nolint:errcheck
	id, err := hub.Open(ctx, f.admin.Address())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	h := NewHandler(hub, f.journal)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if sid := c.Get("X-Test-Session"); sid != "" {
			c.Locals(auth.ClaimsLocal, auth.Claims{
				SessionID:        sid,
				RegisteredClaims: jwt.RegisteredClaims{Subject: f.admin.Address().Hex()},
			})
		}
		return c.Next()
	})
	app.Get("/dashboard", h.Show)
	app.Post("/dashboard/nav", h.Navigate)
	app.Get("/panels/home", h.Home)
	app.Get("/panels/subscription", h.Subscription)
	app.Post("/panels/subscription/register", h.Register)
	app.Post("/panels/subscription/subscribe", h.Subscribe)
	app.Post("/panels/vault/transfer", h.Transfer)
	app.Get("/transactions", h.Transactions)

	return &handlerFixture{fixture: f, app: app, hub: hub, id: id}
}

func (hf *handlerFixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-Session", hf.id)
	resp, err := hf.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func TestShowDashboard(t *testing.T) {
	hf := setupHandler(t)
	resp, raw := hf.do(t, fiber.MethodGet, "/dashboard", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.StatusCode, raw)
	}
	var body dashboardResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID != hf.id || body.Active != nav.Home || len(body.Sidebar) != 5 {
		t.Fatalf("unexpected dashboard %+v", body)
	}
	if !body.Sidebar[0].Active || !body.Sidebar[4].Logout || body.Sidebar[4].Panel != "" {
		t.Fatalf("unexpected sidebar %+v", body.Sidebar)
	}
	if body.State.UserAddress != hf.admin.Address() {
		t.Fatalf("unexpected state %+v", body.State)
	}
}

func TestShowRequiresSession(t *testing.T) {
	hf := setupHandler(t)
	req := httptest.NewRequest(fiber.MethodGet, "/dashboard", nil)
	resp, err := hf.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.StatusCode)
	}

	hf.id = "unknown"
	resp, _ = hf.do(t, fiber.MethodGet, "/dashboard", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("unknown sessions must answer 401, got %d", resp.StatusCode)
	}
}

func TestNavigateAndWrite(t *testing.T) {
	hf := setupHandler(t)

	resp, raw := hf.do(t, fiber.MethodPost, "/panels/subscription/register", `{"username":"alice","email":"a@b.com"}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("writes outside their panel must answer 409, got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = hf.do(t, fiber.MethodPost, "/dashboard/nav", `{"name":"InvalidName"}`)
	var out navResponse
	if err := json.Unmarshal(raw, &out); err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("nav: %d %s", resp.StatusCode, raw)
	}
	if out.Known || out.Changed || out.Active != nav.Home {
		t.Fatalf("unknown labels must be a no-op, got %+v", out)
	}

	resp, raw = hf.do(t, fiber.MethodPost, "/dashboard/nav", `{"name":"Souscriptions"}`)
	if err := json.Unmarshal(raw, &out); err != nil || resp.StatusCode != fiber.StatusOK || out.Active != nav.Subscription {
		t.Fatalf("nav: %d %s", resp.StatusCode, raw)
	}

	resp, raw = hf.do(t, fiber.MethodPost, "/panels/subscription/register", `{"username":"alice","email":"a@b.com"}`)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", resp.StatusCode, raw)
	}
	var task taskResponse
	if err := json.Unmarshal(raw, &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if task.TxHash == "" || task.Panel != "subscription" || task.Status != string(TaskPending) {
		t.Fatalf("unexpected task %+v", task)
	}

	d, _ := hf.hub.Get(context.Background(), hf.id)
	d.Wait()
	if d.State().Profile().Username != "alice" {
		t.Fatalf("confirmation must dispatch the refetched profile")
	}

	resp, raw = hf.do(t, fiber.MethodPost, "/panels/subscription/register", `{"username":"alice","email":"a@b.com"}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("reverted writes must answer 409, got %d: %s", resp.StatusCode, raw)
	}

	resp, raw = hf.do(t, fiber.MethodGet, "/transactions?limit=10", "")
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), task.TxHash) {
		t.Fatalf("transactions: %d %s", resp.StatusCode, raw)
	}
}

func TestTransferValidatesAmount(t *testing.T) {
	hf := setupHandler(t)
	hf.do(t, fiber.MethodPost, "/dashboard/nav", `{"name":"Vault MultiSig"}`)

	resp, _ := hf.do(t, fiber.MethodPost, "/panels/vault/transfer", `{"amount_wei":"1e12"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.StatusCode)
	}
	resp, _ = hf.do(t, fiber.MethodPost, "/panels/vault/transfer", `{"amount_wei":"-5"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.StatusCode)
	}
	resp, _ = hf.do(t, fiber.MethodPost, "/panels/vault/transfer", "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("transfer without a vault must revert with 409, got %d", resp.StatusCode)
	}
}

func TestHomePanel(t *testing.T) {
	hf := setupHandler(t)
	resp, raw := hf.do(t, fiber.MethodGet, "/panels/home", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.StatusCode, raw)
	}
	var summary HomeSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Service != "N/A" || summary.Title != "Récapitulatif" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	resp, _ = hf.do(t, fiber.MethodGet, "/panels/subscription", "")
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("reading an inactive panel must answer 409, got %d", resp.StatusCode)
	}
}
