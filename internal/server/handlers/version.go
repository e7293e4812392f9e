package handlers

import (
	"encoding/json"
	"net/http"
)

// VersionInfo is build metadata reported by GET /version.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// VersionHandler serves GET /version.
func VersionHandler(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	}
}
