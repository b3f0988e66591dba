//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiketi/apiserver/config"
	"github.com/tiketi/apiserver/internal/db"
	"github.com/tiketi/apiserver/internal/server"
	"github.com/tiketi/apiserver/internal/services"
	"github.com/tiketi/apiserver/internal/store"
)

const serverPort = 18080

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setEnv()
	cfg := config.LoadConfig()

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := db.MigrateUp(cfg.Database); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := server.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestPurchaseFlow(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("organiser_%d@example.com", suffix)
	password := "s3cret-pass"

	var signup authResponse
	status := call(t, http.MethodPost, "/sign-up", "", map[string]string{
		"name":     "Organiser",
		"phone":    uniquePhone(suffix),
		"email":    email,
		"password": password,
	}, &signup)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, signup.Token)

	promote(t, email)

	var login authResponse
	status = call(t, http.MethodPost, "/login", "", map[string]string{
		"email":    strings.ToUpper(email),
		"password": password,
	}, &login)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", login.User.Role)
	token := login.Token

	var category idResponse
	status = call(t, http.MethodPost, "/categories", token,
		map[string]string{"name": fmt.Sprintf("Concerts %d", suffix)}, &category)
	require.Equal(t, http.StatusCreated, status)

	var event idResponse
	status = call(t, http.MethodPost, "/events", token, map[string]any{
		"name":        "Nairobi Jazz Night",
		"description": "Live jazz",
		"venue":       "Carnivore Grounds",
		"category_id": category.ID,
		"start_date":  "2030-03-01T18:00:00Z",
		"end_date":    "2030-03-01T23:00:00Z",
	}, &event)
	require.Equal(t, http.StatusCreated, status)

	var ticket idResponse
	status = call(t, http.MethodPost, "/tickets", token, map[string]any{
		"name":              "VIP",
		"price":             2500,
		"tickets_available": 3,
		"event_id":          event.ID,
	}, &ticket)
	require.Equal(t, http.StatusCreated, status)

	status = call(t, http.MethodPost, "/tickets", token, map[string]any{
		"name":              "VIP",
		"price":             100,
		"tickets_available": 1,
		"event_id":          event.ID,
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "ticket names are unique per event")

	buyer := signupBuyer(t, suffix+1)

	var purchase purchaseResponse
	status = call(t, http.MethodPost, "/payments", buyer, map[string]any{
		"ticket_id":  ticket.ID,
		"quantity":   2,
		"mpesa_code": fmt.Sprintf("MP%d", suffix),
	}, &purchase)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 1, purchase.TicketsRemaining)

	status = call(t, http.MethodPost, "/payments", buyer, map[string]any{
		"ticket_id": ticket.ID,
		"quantity":  2,
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "cannot oversell")

	var fetched eventResponse
	status = call(t, http.MethodGet, fmt.Sprintf("/events/%d", event.ID), "", nil, &fetched)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, fetched.Tickets, 1)
	assert.Equal(t, 1, fetched.Tickets[0].TicketsRemaining)
}

func TestConcurrentPurchasesDoNotOversell(t *testing.T) {
	suffix := time.Now().UnixNano()
	email := fmt.Sprintf("rush_%d@example.com", suffix)

	var signup authResponse
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, "/sign-up", "", map[string]string{
		"name":     "Rush Admin",
		"phone":    uniquePhone(suffix),
		"email":    email,
		"password": "s3cret-pass",
	}, &signup))
	promote(t, email)

	var login authResponse
	require.Equal(t, http.StatusOK, call(t, http.MethodPost, "/login", "", map[string]string{
		"email": email, "password": "s3cret-pass",
	}, &login))

	var category, event, ticket idResponse
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, "/categories", login.Token,
		map[string]string{"name": fmt.Sprintf("Rush %d", suffix)}, &category))
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, "/events", login.Token, map[string]any{
		"name": "Rush", "description": "d", "venue": "v", "category_id": category.ID,
		"start_date": "2030-01-01T10:00:00Z", "end_date": "2030-01-01T12:00:00Z",
	}, &event))
	require.Equal(t, http.StatusCreated, call(t, http.MethodPost, "/tickets", login.Token, map[string]any{
		"name": "Regular", "price": 500, "tickets_available": 4, "event_id": event.ID,
	}, &ticket))

	buyer := signupBuyer(t, suffix+1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 12 {
		wg.Go(func() {
			status, err := purchaseOne(buyer, ticket.ID)
			if err != nil {
				t.Errorf("purchase: %v", err)
				return
			}
			if status == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 4, created)
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID   int    `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

type idResponse struct {
	ID int `json:"id"`
}

type purchaseResponse struct {
	TicketsRemaining int `json:"tickets_remaining"`
}

type eventResponse struct {
	ID      int `json:"id"`
	Tickets []struct {
		ID               int `json:"id"`
		TicketsRemaining int `json:"tickets_remaining"`
	} `json:"tickets"`
}

func uniquePhone(seed int64) string {
	return fmt.Sprintf("+254712%06d", seed%1_000_000)
}

func signupBuyer(t *testing.T, seed int64) string {
	t.Helper()
	var resp authResponse
	status := call(t, http.MethodPost, "/sign-up", "", map[string]string{
		"name":     "Buyer",
		"phone":    uniquePhone(seed),
		"email":    fmt.Sprintf("buyer_%d@example.com", seed),
		"password": "buyer-pass",
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	return resp.Token
}

// promote grants the admin role directly, the same way `tiketi user promote` does.
func promote(t *testing.T, email string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, config.LoadConfig())
	require.NoError(t, err)
	defer conn.Close()

	users := services.NewUserService(store.NewUserRepository(conn), nil, nil, nil)
	_, err = users.Promote(ctx, email)
	require.NoError(t, err)
}

func purchaseOne(token string, ticketID int) (int, error) {
	raw, err := json.Marshal(map[string]int{"ticket_id": ticketID, "quantity": 1})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, baseURL+"/payments", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func call(t *testing.T, method, path, token string, payload, out any) int {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func setEnv() {
	_ = os.Setenv("JWT_SECRET", "e2e-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "tiketi")
	_ = os.Setenv("DB_PASSWORD", "tiketi")
	_ = os.Setenv("DB_NAME", "tiketi")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("BCRYPT_COST", "4")
	_ = os.Setenv("LOGIN_RATE_LIMIT", "100")
	_ = os.Setenv("LOGIN_RATE_BURST", "100")
	_ = os.Setenv("METRICS_ENABLED", "false")
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		conn, err := db.Open(pingCtx, cfg)
		cancel()
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}
