package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/vdavid/inbox-agent/internal/agent"
	"github.com/vdavid/inbox-agent/internal/api"
	"github.com/vdavid/inbox-agent/internal/config"
	"github.com/vdavid/inbox-agent/internal/models"
	ws "github.com/vdavid/inbox-agent/internal/websocket"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	server := NewServer(cfg)

	address := ":" + cfg.Port
	log.Printf("Inbox Agent server starting on %s (environment: %s)", address, cfg.Environment)

	if err := http.ListenAndServe(address, server); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// NewServer creates and returns a new HTTP handler for the Inbox Agent API server.
func NewServer(cfg *config.Config) http.Handler {
	wsHub := ws.NewHub(10)

	run := func(ctx context.Context, runID string, runCfg agent.Config) (*models.Report, error) {
		runner := &agent.Runner{
			LogSink: hubLogSink(wsHub, runID),
		}
		return runner.Run(ctx, runID, runCfg)
	}

	agentHandler := api.NewAgentHandler(cfg.Environment, run)
	wsHandler := api.NewWebSocketHandler(wsHub)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/agent/run", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		agentHandler.Run(w, r)
	}))
	// WebSocket subscribers identify the run via query parameter (browsers
	// can't set headers on WebSocket connections).
	mux.Handle("/api/v1/agent/ws", http.HandlerFunc(wsHandler.Handle))

	return mux
}

// hubLogSink forwards run log entries to WebSocket subscribers of the run.
func hubLogSink(hub *ws.Hub, runID string) agent.LogSink {
	return func(entry models.LogEntry) {
		payload, err := json.Marshal(entry)
		if err != nil {
			log.Printf("Failed to encode log entry for run %s: %v", runID, err)
			return
		}
		hub.Send(runID, payload)
	}
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Inbox Agent API is running")
}
