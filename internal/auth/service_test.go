package auth_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/examstack/examstack/internal/auth"
	"github.com/examstack/examstack/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func TestIssueAndParseJWT(t *testing.T) {
	svc := auth.NewAuthService("test-secret")

	tok, err := svc.IssueJWT("u1", "candidate")
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	claims, err := svc.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Sub != "u1" || claims.Role != "candidate" {
		t.Fatalf("claims = %+v", claims)
	}

	// A token signed with a different secret must be rejected.
	other := auth.NewAuthService("other-secret")
	if _, err := other.Parse(tok); err == nil {
		t.Fatalf("foreign token accepted")
	}
	if _, err := svc.Parse("not.a.token"); err == nil {
		t.Fatalf("garbage token accepted")
	}
}

func TestSeedAdminAndLogin(t *testing.T) {
	dbh := newTestDB(t)
	ctx := context.Background()

	// Empty password on an empty users table is refused.
	if err := auth.SeedAdmin(ctx, dbh, "admin", ""); err == nil {
		t.Fatalf("SeedAdmin must require a password")
	}
	if err := auth.SeedAdmin(ctx, dbh, "admin", "hunter22"); err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}
	// Seeding again is a no-op once a user exists.
	if err := auth.SeedAdmin(ctx, dbh, "admin2", "other"); err != nil {
		t.Fatalf("SeedAdmin repeat: %v", err)
	}
	var count int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil || count != 1 {
		t.Fatalf("users count = %d err=%v, want 1", count, err)
	}

	svc := auth.NewAuthService("test-secret")
	handler := auth.LoginHandler(svc, dbh)

	login := func(username, password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"username": username, "password": password})
		req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec
	}

	rec := login("admin", "hunter22")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d, body %s", rec.Code, rec.Body)
	}
	var out map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	claims, err := svc.Parse(out["access_token"])
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Role != "admin" {
		t.Fatalf("seeded admin role = %q", claims.Role)
	}

	if rec := login("admin", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", rec.Code)
	}
	if rec := login("nobody", "hunter22"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: status %d", rec.Code)
	}
}
