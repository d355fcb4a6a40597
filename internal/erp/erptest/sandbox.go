// Package erptest provides an in-process ERP sandbox that speaks the token,
// transfer order header and transfer order line endpoints.
package erptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Sandbox records every transfer order it receives.
type Sandbox struct {
	mu sync.Mutex

	ClientID     string
	ClientSecret string
	Token        string

	headers    map[string]map[string]any
	lines      map[string][]map[string]any
	nextHeader int
	nextLine   int

	tokenCalls  int
	headerCalls int
	lineCalls   int

	// FailHeaders makes header creation for a receiving warehouse answer with
	// the given status.
	FailHeaders map[string]int
	// FailItems makes line creation for an item number answer with the given
	// status.
	FailItems map[string]int
	// OmitLotIDs makes line creation for an item number succeed without
	// returning a ShippingInventoryLotId.
	OmitLotIDs map[string]bool
}

// NewSandbox creates a sandbox that accepts the given client credentials.
func NewSandbox(clientID, clientSecret string) *Sandbox {
	return &Sandbox{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Token:        "sandbox-token",
		headers:      make(map[string]map[string]any),
		lines:        make(map[string][]map[string]any),
		nextHeader:   1,
		nextLine:     1,
		FailHeaders:  make(map[string]int),
		FailItems:    make(map[string]int),
		OmitLotIDs:   make(map[string]bool),
	}
}

// Handler returns the sandbox routes.
func (s *Sandbox) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/oauth2/v2.0/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/data/TransferOrderHeaders", s.requireToken(s.handleHeader)).Methods(http.MethodPost)
	r.HandleFunc("/data/TransferOrderLines", s.requireToken(s.handleLine)).Methods(http.MethodPost)
	r.HandleFunc("/data/TransferOrderHeaders", s.handleListHeaders).Methods(http.MethodGet)
	return r
}

func (s *Sandbox) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokenCalls++
	s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	if r.PostForm.Get("client_id") != s.ClientID || r.PostForm.Get("client_secret") != s.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.Token,
		"token_type":   "Bearer",
		"expires_in":   3599,
	})
}

func (s *Sandbox) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}
		next(w, r)
	}
}

func (s *Sandbox) handleHeader(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.headerCalls++

	receiving, _ := body["ReceivingWarehouseId"].(string)
	if status, ok := s.FailHeaders[receiving]; ok {
		writeJSON(w, status, map[string]string{"error": "header rejected for " + receiving})
		return
	}

	number := fmt.Sprintf("TR-%06d", s.nextHeader)
	s.nextHeader++
	body["TransferOrderNumber"] = number
	s.headers[number] = body

	log.Debug().Str("transfer_order", number).Str("receiving", receiving).Msg("sandbox header created")
	writeJSON(w, http.StatusCreated, body)
}

func (s *Sandbox) handleLine(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineCalls++

	number, _ := body["TransferOrderNumber"].(string)
	if _, ok := s.headers[number]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transfer order not found: " + number})
		return
	}
	item, _ := body["ItemNumber"].(string)
	if status, ok := s.FailItems[item]; ok {
		writeJSON(w, status, map[string]string{"error": "line rejected for " + item})
		return
	}

	s.lines[number] = append(s.lines[number], body)
	if s.OmitLotIDs[item] {
		writeJSON(w, http.StatusCreated, body)
		return
	}

	lineID := fmt.Sprintf("LOT-%06d", s.nextLine)
	s.nextLine++
	body["ShippingInventoryLotId"] = lineID

	writeJSON(w, http.StatusCreated, body)
}

func (s *Sandbox) handleListHeaders(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(s.headers))
	for _, h := range s.headers {
		out = append(out, h)
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": out})
}

// Lines returns the lines posted to a transfer order.
func (s *Sandbox) Lines(transferOrderNumber string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.lines[transferOrderNumber]...)
}

// Header returns the header body stored for a transfer order.
func (s *Sandbox) Header(transferOrderNumber string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.headers[transferOrderNumber]
	return h, ok
}

// Calls returns how many token, header and line requests were received.
func (s *Sandbox) Calls() (token, header, line int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls, s.headerCalls, s.lineCalls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
