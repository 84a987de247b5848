package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/domain"
	"server/internal/infra"
)

// App bundles the collaborators every handler needs.
type App struct {
	Ledger domain.Ledger
	Queue  domain.Queue
	Store  domain.ArtifactStore
	Cfg    *infra.Config
	Logger infra.Logger
}

func NewApp(ledger domain.Ledger, queue domain.Queue, store domain.ArtifactStore, cfg *infra.Config, logger infra.Logger) *App {
	return &App{Ledger: ledger, Queue: queue, Store: store, Cfg: cfg, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}
