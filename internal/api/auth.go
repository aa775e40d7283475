package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/niconistal/BabyBox/internal/auth"
	"github.com/niconistal/BabyBox/internal/library"
)

// minPINLength keeps parents from setting a PIN a toddler can mash in.
const minPINLength = 4

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	PIN string `json:"pin"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// pinRequest is the request body for setting or changing the PIN.
type pinRequest struct {
	PIN string `json:"pin"`
}

// handleLogin exchanges the parental PIN for a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	hash, err := s.settings.PINHash(r.Context())
	if err != nil {
		s.logger.Error("reading pin hash", "error", err)
		writeInternalError(w, "failed to read credentials")
		return
	}
	if hash == "" {
		writeConflict(w, "no PIN set; complete setup first")
		return
	}

	ok, err := auth.VerifyPIN(req.PIN, hash)
	if err != nil {
		s.logger.Error("verifying pin", "error", err)
		writeInternalError(w, "failed to verify credentials")
		return
	}
	if !ok {
		writeUnauthorized(w, "incorrect PIN")
		return
	}

	ttl := s.secCfg.JWT.AccessTokenTTL
	token, err := auth.GenerateToken(s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("generating token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60,
	})
}

// handleSetup sets the initial PIN. It only works while no PIN exists;
// afterwards changes go through the authenticated PIN route.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	hash, err := s.settings.PINHash(r.Context())
	if err != nil {
		s.logger.Error("reading pin hash", "error", err)
		writeInternalError(w, "failed to read credentials")
		return
	}
	if hash != "" {
		writeConflict(w, "PIN already set")
		return
	}
	s.storePIN(w, r)
}

// handleChangePIN replaces the PIN. Requires a valid session.
func (s *Server) handleChangePIN(w http.ResponseWriter, r *http.Request) {
	s.storePIN(w, r)
}

func (s *Server) storePIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.PIN) < minPINLength {
		writeBadRequest(w, "PIN must be at least 4 characters")
		return
	}

	hash, err := auth.HashPIN(req.PIN)
	if err != nil {
		s.logger.Error("hashing pin", "error", err)
		writeInternalError(w, "failed to store PIN")
		return
	}
	if err := s.settings.Set(r.Context(), library.SettingParentPINHash, hash); err != nil {
		s.logger.Error("storing pin hash", "error", err)
		writeInternalError(w, "failed to store PIN")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ---- WebSocket tickets ----

// ticketTTL is how long a WebSocket ticket stays valid.
const ticketTTL = 60 * time.Second

// ticketStore holds pending single-use WebSocket authentication tickets.
// The WebSocket handshake cannot carry an Authorization header from a
// browser, so clients trade their JWT for a short-lived ticket first.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]time.Time)}
}

func (ts *ticketStore) issue() string {
	ticket := generateTicket()
	ts.mu.Lock()
	ts.tickets[ticket] = time.Now().Add(ticketTTL)
	ts.mu.Unlock()
	return ticket
}

// consume validates and removes a ticket (single-use).
func (ts *ticketStore) consume(ticket string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	expiry, ok := ts.tickets[ticket]
	if !ok {
		return false
	}
	delete(ts.tickets, ticket)
	return time.Now().Before(expiry)
}

func (ts *ticketStore) clean() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, expiry := range ts.tickets {
		if now.After(expiry) {
			delete(ts.tickets, ticket)
		}
	}
}

// cleanLoop removes expired tickets until the context is cancelled.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.clean()
		}
	}
}

// handleWSTicket issues a single-use WebSocket ticket to an
// authenticated caller.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(),
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketBytes is the number of random bytes in a ticket.
const ticketBytes = 32

func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always fills b on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
