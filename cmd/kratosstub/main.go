// Command kratosstub serves the slice of the Kratos public and admin APIs the
// console signs in against, for local development and end-to-end runs.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonlee411/registry-console/internal/logging"
)

// identityNamespace keeps stub identity ids stable across restarts.
var identityNamespace = uuid.MustParse("4f0c3f4e-7a5d-4d43-9a57-8b7c1f0d2e61")

type identity struct {
	ID       string
	Email    string
	Name     string
	Picture  string
	Password string
}

func (i identity) traits() map[string]any {
	return map[string]any{"email": i.Email, "name": i.Name, "picture": i.Picture}
}

type store struct {
	mu sync.Mutex

	byEmail  map[string]identity
	sessions map[string]string // session_token -> email
}

func newStore() *store {
	return &store{byEmail: map[string]identity{}, sessions: map[string]string{}}
}

func (s *store) add(email, name, picture, password string) (identity, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return identity{}, false
	}
	ident := identity{
		ID:       uuid.NewSHA1(identityNamespace, []byte(email)).String(),
		Email:    email,
		Name:     strings.TrimSpace(name),
		Picture:  strings.TrimSpace(picture),
		Password: password,
	}
	s.byEmail[email] = ident
	return ident, true
}

func (s *store) login(email, password string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byEmail[email]
	if !ok || ident.Password != password {
		return "", false
	}
	token := newToken()
	s.sessions[token] = ident.Email
	return token, true
}

func (s *store) whoami(token string) (identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.sessions[token]
	if !ok {
		return identity{}, false
	}
	ident, ok := s.byEmail[email]
	return ident, ok
}

func (s *store) logout(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// seed reads "email:password[:name]" entries separated by commas.
func (s *store) seed(raw string) (int, error) {
	n := 0
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
			return n, errors.New("kratosstub: account must be email:password[:name]")
		}
		name := ""
		if len(parts) == 3 {
			name = parts[2]
		}
		if _, ok := s.add(parts[0], name, "", parts[1]); ok {
			n++
		}
	}
	return n, nil
}

func main() {
	if err := logging.Init(getenvDefault("LOG_LEVEL", "info"), getenvDefault("LOG_FORMAT", "text"), os.Stderr); err != nil {
		logging.ErrorErr(logging.CatConfig, "kratosstub: logging", err)
		os.Exit(1)
	}
	publicAddr := getenvDefault("KRATOS_STUB_PUBLIC_ADDR", "127.0.0.1:4433")
	adminAddr := getenvDefault("KRATOS_STUB_ADMIN_ADDR", "127.0.0.1:4434")

	s := newStore()
	n, err := s.seed(os.Getenv("KRATOS_STUB_ACCOUNTS"))
	if err != nil {
		logging.ErrorErr(logging.CatConfig, "kratosstub: seed accounts", err)
		os.Exit(1)
	}

	publicSrv := &http.Server{Addr: publicAddr, Handler: s.publicMux(), ReadHeaderTimeout: 5 * time.Second}
	adminSrv := &http.Server{Addr: adminAddr, Handler: s.adminMux(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- listenAndServe(publicSrv) }()
	go func() { errCh <- listenAndServe(adminSrv) }()
	logging.Info(logging.CatHTTP, "kratosstub listening", "public", publicAddr, "admin", adminAddr, "accounts", n)

	select {
	case err := <-errCh:
		if err != nil {
			logging.ErrorErr(logging.CatHTTP, "kratosstub: server error", err)
		}
	case <-ctx.Done():
	}
	_ = publicSrv.Shutdown(context.Background())
	_ = adminSrv.Shutdown(context.Background())
}

func (s *store) publicMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("GET /self-service/login/api", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": uuid.NewString()})
	})
	mux.HandleFunc("POST /self-service/login", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("flow") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req struct {
			Method     string `json:"method"`
			Identifier string `json:"identifier"`
			Password   string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.Method != "password" || strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		token, ok := s.login(req.Identifier, req.Password)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "invalid credentials"}})
			return
		}
		ident, _ := s.whoami(token)
		writeJSON(w, http.StatusOK, map[string]any{
			"session_token": token,
			"session":       map[string]any{"identity": map[string]any{"id": ident.ID, "traits": ident.traits()}},
		})
	})
	mux.HandleFunc("GET /sessions/whoami", func(w http.ResponseWriter, r *http.Request) {
		ident, ok := s.whoami(strings.TrimSpace(r.Header.Get("X-Session-Token")))
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"identity": map[string]any{"id": ident.ID, "traits": ident.traits()}})
	})
	mux.HandleFunc("DELETE /self-service/logout/api", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SessionToken string `json:"session_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionToken == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !s.logout(req.SessionToken) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (s *store) adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("POST /admin/identities", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SchemaID string `json:"schema_id"`
			Traits   struct {
				Email   string `json:"email"`
				Name    string `json:"name"`
				Picture string `json:"picture"`
			} `json:"traits"`
			Credentials struct {
				Password struct {
					Config struct {
						Password string `json:"password"`
					} `json:"config"`
				} `json:"password"`
			} `json:"credentials"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(req.Traits.Email)
		password := req.Credentials.Password.Config.Password
		if req.SchemaID == "" || email == "" || password == "" || strings.ContainsAny(email, " \t\r\n") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ident, ok := s.add(email, req.Traits.Name, req.Traits.Picture, password)
		if !ok {
			w.WriteHeader(http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": ident.ID, "traits": ident.traits()})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func listenAndServe(srv *http.Server) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func newToken() string {
	var b [32]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func getenvDefault(k string, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
