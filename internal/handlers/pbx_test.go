package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/config"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/dialog"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/storage"
)

func newTestApp(t *testing.T) (*fiber.App, *storage.MemoryStore, *session.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore(365).WithBcryptCost(bcrypt.MinCost)
	sessions := session.NewMemoryStore(30 * time.Minute)
	engine := dialog.NewEngine(sessions, store, dialog.Config{
		MaxAttempts: 4,
		Extensions:  config.Extensions{Login: "1663", Register: "1664", ReceiptMenu: "1665", CustomerMenu: "1668"},
	})

	app := fiber.New()
	pbx := NewPBXHandler(engine)
	app.Get("/sign", pbx.Flow(dialog.FlowRegistration))
	app.Post("/sign", pbx.Flow(dialog.FlowRegistration))
	app.Get("/login", pbx.Flow(dialog.FlowLogin))
	app.Get("/nope", pbx.Flow("nope"))

	app.Get("/health", NewHealthHandler("test", store, sessions).Check)

	admin := NewAdminHandler(store, sessions)
	app.Get("/admin/sessions", admin.GetSessions)
	app.Get("/admin/customers/:phone", admin.GetCustomer)
	app.Get("/admin/customers/:phone/receipts", admin.GetReceipts)

	return app, store, sessions
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)

	out := map[string]interface{}{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return resp.StatusCode, out
}

func TestParseCallbackTakesLastAnswer(t *testing.T) {
	app := fiber.New()
	var got dialog.Callback
	app.All("/", func(c *fiber.Ctx) error {
		got = ParseCallback(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET",
		"/?PBXphone=0501234567&PBXcallId=abc&PBXextensionId=12&name=Dani&token=x&tz=123456782", nil))
	if err != nil {
		t.Fatal(err)
	}
	want := dialog.Callback{CallID: "abc", Phone: "0501234567", Key: "tz", Value: "123456782"}
	if got != want {
		t.Fatalf("callback = %+v, want %+v", got, want)
	}

	form := url.Values{"PBXphone": {"0501234567"}, "PBXcallId": {"abc"}, "confirm": {"0"}}
	req := httptest.NewRequest("POST", "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if _, err := app.Test(req); err != nil {
		t.Fatal(err)
	}
	if got.Key != "confirm" || got.Value != "0" || got.CallID != "abc" {
		t.Fatalf("form callback = %+v", got)
	}
}

func TestPBXMissingCaller(t *testing.T) {
	app, _, _ := newTestApp(t)

	for _, target := range []string{"/sign?PBXcallId=abc", "/sign?PBXphone=0501234567", "/sign"} {
		code, body := doJSON(t, app, httptest.NewRequest("GET", target, nil))
		if code != fiber.StatusBadRequest || body["error"] == nil {
			t.Errorf("GET %s = %d %v, want 400", target, code, body)
		}
	}
}

func TestPBXUnknownFlow(t *testing.T) {
	app, _, _ := newTestApp(t)
	code, _ := doJSON(t, app, httptest.NewRequest("GET", "/nope?PBXphone=0501234567&PBXcallId=abc", nil))
	if code != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestPBXRegistrationWireShapes(t *testing.T) {
	app, _, _ := newTestApp(t)
	base := "/sign?PBXphone=0501234567&PBXcallId=call-1"

	_, body := doJSON(t, app, httptest.NewRequest("GET", base, nil))
	if body["type"] != "stt" || body["name"] != "name" || body["fileName"] != "name_0501234567" {
		t.Fatalf("first prompt = %v", body)
	}

	_, body = doJSON(t, app, httptest.NewRequest("GET", base+"&name=Dani", nil))
	if body["type"] != "getDTMF" || body["name"] != "tz" || body["max"] != float64(9) || body["confirmType"] != "no" {
		t.Fatalf("tz prompt = %v", body)
	}

	_, body = doJSON(t, app, httptest.NewRequest("GET", base+"&name=Dani&tz=123456789", nil))
	files := body["files"].([]interface{})
	text := files[0].(map[string]interface{})["text"].(string)
	if body["name"] != "tz" || !strings.HasPrefix(text, "ת.ז לא תקין. ") {
		t.Fatalf("tz retry = %v", body)
	}
}

func TestPBXLoginTransfer(t *testing.T) {
	app, store, _ := newTestApp(t)
	registerCustomer(t, store)

	_, body := doJSON(t, app, httptest.NewRequest("GET", "/login?PBXphone=0501234567&PBXcallId=c1&password=1234", nil))
	if body["type"] != "extensionChange" || body["extensionIdChange"] != "1668" {
		t.Fatalf("login = %v", body)
	}
}
