package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp(h fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/", h, func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestValidatePBXToken(t *testing.T) {
	app := newApp(ValidatePBXToken("s3cret"))

	tests := []struct {
		url  string
		want int
	}{
		{"/?PBXphone=050&token=s3cret", fiber.StatusOK},
		{"/?PBXphone=050&token=wrong", fiber.StatusUnauthorized},
		{"/?PBXphone=050", fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.url, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.url, resp.StatusCode, tt.want)
		}
	}
}

func TestValidatePBXTokenDisabled(t *testing.T) {
	app := newApp(ValidatePBXToken(""))
	resp, err := app.Test(httptest.NewRequest("GET", "/?PBXphone=050", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequireAdminToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"valid", "admin", "Bearer admin", fiber.StatusOK},
		{"wrong", "admin", "Bearer nope", fiber.StatusForbidden},
		{"missing", "admin", "", fiber.StatusUnauthorized},
		{"not bearer", "admin", "Basic admin", fiber.StatusUnauthorized},
		{"disabled", "", "Bearer ", fiber.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(RequireAdminToken(tt.token))
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	app := newApp(RequestID())

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Fatal("request id not set")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get(RequestIDHeader); got != "abc" {
		t.Fatalf("request id = %q, want abc", got)
	}

	app = fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error {
		id, _ := c.Locals("requestid").(string)
		return c.SendString(id)
	})
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "xyz")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "xyz" {
		t.Fatalf("locals requestid = %q, want xyz", body)
	}
}
