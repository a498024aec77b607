package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"
)

const sessionCookie = "portal_session"

// skyFixtureDate is the outbound date baked into the skyscanner result page.
var skyFixtureDate = time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)

type skySession struct {
	polls    int
	outbound string
}

// skyHandler answers polls with N until a session has polled pending times, then with the result page.
type skyHandler struct {
	file    string
	pending int

	mu    sync.Mutex
	sessions map[string]*skySession
}

func newSkyHandler(file string, pending int) *skyHandler {
	return &skyHandler{file: file, pending: pending, sessions: make(map[string]*skySession)}
}

func (h *skyHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := newToken()
	q := r.URL.Query()
	h.mu.Lock()
	h.sessions[session] = &skySession{outbound: q.Get("outbounddate")}
	h.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, searchPage, "Skyscanner", "/portal/sky/poll", session, q.Get("originplace"), q.Get("destinationplace"))
}

func (h *skyHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, err := r.Cookie(sessionCookie)
	if err != nil || r.FormValue("_token") != c.Value {
		http.Error(w, "Page Not Found", http.StatusNotFound)
		return
	}

	h.mu.Lock()
	sess, ok := h.sessions[c.Value]
	if ok {
		sess.polls++
	}
	h.mu.Unlock()
	if !ok {
		http.Error(w, "Page Not Found", http.StatusNotFound)
		return
	}
	n := sess.polls

	// each poll hands out a fresh cookie the client has to send back
	http.SetCookie(w, &http.Cookie{Name: "poll_step", Value: fmt.Sprint(n), Path: "/"})

	if n <= h.pending {
		fmt.Fprintf(w, "N|%d|||||", n*10)
		return
	}

	page, err := os.ReadFile(h.file)
	if err != nil {
		http.Error(w, "Failed to read flight data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	delete(h.sessions, c.Value)
	h.mu.Unlock()

	page = shiftDates(page, skyFixtureDate, sess.outbound, "2006-01-02")
	fmt.Fprintf(w, "Y|%d|0|0|0|0|%s", 3, url.PathEscape(string(page)))
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
