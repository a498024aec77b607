package main

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

// kiwiFixtureDate is the outbound date baked into the kiwi result page.
var kiwiFixtureDate = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func KiwiSearchPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := newToken()
	q := r.URL.Query()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, searchPage, "Kiwi", "/portal/kiwi/search", session, q.Get("originplace"), q.Get("destinationplace"))
}

func KiwiResultsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	c, err := r.Cookie(sessionCookie)
	if err != nil || r.FormValue("_token") != c.Value {
		http.Error(w, "Session expired", http.StatusForbidden)
		return
	}

	// Read HTML file
	page, err := os.ReadFile("mock/files/kiwi_results.html")
	if err != nil {
		http.Error(w, "Failed to read flight data: "+err.Error(), http.StatusInternalServerError)
		return
	}

	page = shiftDates(page, kiwiFixtureDate, r.FormValue("outbounddate"), "02/01/2006")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
