// notify-receiver is a standalone endpoint for exercising eventcron
// webhook notifications locally. It records every delivery, verifies the
// HMAC signature when SECRET is set, and exposes counters for scripting.
package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

type delivery struct {
	Timestamp      string `json:"timestamp"`
	Type           string `json:"type"`
	Signature      string `json:"signature"`
	SignatureValid *bool  `json:"signature_valid,omitempty"`
	Body           string `json:"body"`
}

type stats struct {
	Count          int64      `json:"count"`
	InvalidCount   int64      `json:"invalid_signature_count"`
	LastDeliveries []delivery `json:"last_deliveries"`
	Since          string     `json:"since"`
}

var (
	mu             sync.Mutex
	count          int64
	invalidCount   int64
	lastDeliveries []delivery
	since          time.Time
	maxStored      = 50

	secret string
)

func main() {
	since = time.Now().UTC()
	secret = os.Getenv("SECRET")

	addr := ":8080"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/notify", notifyHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		invalidCount = 0
		lastDeliveries = nil
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	if secret == "" {
		log.Println("notify-receiver: SECRET not set, signatures are recorded but not verified")
	}
	log.Printf("notify-receiver listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func notifyHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	d := delivery{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Type:      r.Header.Get("X-EventCron-Type"),
		Signature: r.Header.Get("X-EventCron-Signature"),
		Body:      string(body),
	}

	if secret != "" {
		valid := verifySignature(secret, body, d.Signature)
		d.SignatureValid = &valid
	}

	mu.Lock()
	count++
	if d.SignatureValid != nil && !*d.SignatureValid {
		invalidCount++
	}
	lastDeliveries = append(lastDeliveries, d)
	if len(lastDeliveries) > maxStored {
		lastDeliveries = lastDeliveries[len(lastDeliveries)-maxStored:]
	}
	current := count
	mu.Unlock()

	if d.SignatureValid != nil && !*d.SignatureValid {
		log.Printf("notify received #%d: INVALID SIGNATURE type=%s body=%s", current, d.Type, d.Body)
	} else {
		log.Printf("notify received #%d: type=%s body=%s", current, d.Type, d.Body)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"received":%d}`, current)
}

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	s := stats{
		Count:          count,
		InvalidCount:   invalidCount,
		LastDeliveries: lastDeliveries,
		Since:          since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
