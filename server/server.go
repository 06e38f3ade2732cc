package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/xhad/tuber/pkg/chat"
	"github.com/xhad/tuber/pkg/retriever"
)

// Ingestor runs the transcript ingestion pipeline for one video.
type Ingestor interface {
	Ingest(ctx context.Context, url, documentID string) error
}

// Asker answers a question against a conversation.
type Asker interface {
	Ask(ctx context.Context, req chat.Request) (string, error)
	AskStream(ctx context.Context, req chat.Request, emit func(fragment string) error) (string, error)
}

type Config struct {
	Port       string
	CORSOrigin string
}

type Server struct {
	config       Config
	pipeline     Ingestor
	orchestrator Asker
}

func New(pipeline Ingestor, orchestrator Asker, config Config) *Server {
	if config.Port == "" {
		config.Port = "8000"
	}

	return &Server{
		config:       config,
		pipeline:     pipeline,
		orchestrator: orchestrator,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type storeDocumentRequest struct {
	URL        string `json:"url"`
	DocumentID string `json:"documentId"`
}

type storeDocumentResponse struct {
	OK bool `json:"ok"`
}

type queryDocumentRequest struct {
	ConversationID string   `json:"conversationId"`
	DocumentIDs    []string `json:"documentIds"`
	Query          string   `json:"query"`
}

type queryDocumentResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

const genericError = "An error occurred during the request."

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/store-document", s.handleStoreDocument)
	mux.HandleFunc("/query-document", s.handleQueryDocument)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return s.cors(mux)
}

func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on port %s", s.config.Port)
	return http.ListenAndServe(":"+s.config.Port, s.Handler())
}

func (s *Server) handleStoreDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req storeDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}
	if req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "documentId is required"})
		return
	}

	// Ingestion failures are reported, never thrown: the caller decides
	// whether to retry.
	if err := s.pipeline.Ingest(r.Context(), req.URL, req.DocumentID); err != nil {
		log.Printf("store-document: ingestion failed for %s: %v", req.URL, err)
		writeJSON(w, http.StatusOK, storeDocumentResponse{OK: false})
		return
	}

	writeJSON(w, http.StatusOK, storeDocumentResponse{OK: true})
}

func (s *Server) handleQueryDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req queryDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "conversationId is required"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	chatReq := chat.Request{
		ConversationID: req.ConversationID,
		DocumentIDs:    req.DocumentIDs,
		Question:       req.Query,
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamAnswer(w, r, chatReq)
		return
	}

	answer, err := s.orchestrator.Ask(r.Context(), chatReq)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrAnswerNotSaved):
			// The answer was generated; deliver it and log the store failure.
			log.Printf("query-document: %v", err)
		case errors.Is(err, retriever.ErrFilterRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "documentIds is required"})
			return
		default:
			log.Printf("query-document: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: genericError})
			return
		}
	}

	writeJSON(w, http.StatusOK, queryDocumentResponse{Answer: answer})
}

// streamAnswer delivers the answer as server-sent events. Failures before
// the first fragment become a 500; failures after it become a terminal
// error event so the client can tell "finished" from "broke".
func (s *Server) streamAnswer(w http.ResponseWriter, r *http.Request, req chat.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: genericError})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	started := false
	emit := func(fragment string) error {
		started = true
		if err := writeEvent(w, map[string]string{"content": fragment}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := s.orchestrator.AskStream(r.Context(), req, emit)
	if err == nil {
		return
	}

	if errors.Is(err, chat.ErrAnswerNotSaved) {
		log.Printf("query-document: %v", err)
		return
	}

	log.Printf("query-document: streaming failed: %v", err)

	if !started {
		// Nothing committed yet, so the status can still change.
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, retriever.ErrFilterRequired) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "documentIds is required"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: genericError})
		return
	}

	if writeEvent(w, map[string]string{"error": "Streaming error occurred"}) == nil {
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

type wsRequest struct {
	ConversationID string   `json:"conversationId"`
	DocumentIDs    []string `json:"documentIds"`
	Content        string   `json:"content"`
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.sendMessage(conn, "error", "invalid message")
			continue
		}
		if req.ConversationID == "" || req.Content == "" {
			s.sendMessage(conn, "error", "conversationId and content are required")
			continue
		}

		chatReq := chat.Request{
			ConversationID: req.ConversationID,
			DocumentIDs:    req.DocumentIDs,
			Question:       req.Content,
		}

		_, err = s.orchestrator.AskStream(r.Context(), chatReq, func(fragment string) error {
			return conn.WriteJSON(wsMessage{Type: "stream", Content: fragment})
		})
		if err != nil && !errors.Is(err, chat.ErrAnswerNotSaved) {
			log.Printf("ws: %v", err)
			s.sendMessage(conn, "error", genericError)
			continue
		}
		if err != nil {
			log.Printf("ws: %v", err)
		}

		s.sendMessage(conn, "done", "")
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(wsMessage{Type: msgType, Content: content}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
