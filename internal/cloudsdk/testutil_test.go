package cloudsdk

import (
	"net/http"
	"time"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
