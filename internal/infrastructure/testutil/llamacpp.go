package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// LlamaCppServer is an httptest server speaking the llama.cpp HTTP API over a
// WordTokenizer. Every completion answers with Reply, cut to n_predict tokens.
type LlamaCppServer struct {
	*httptest.Server
	Tokenizer *WordTokenizer
	Reply     string

	mu          sync.Mutex
	completions []int // n_predict of each completion request
}

// NewLlamaCppServer starts a LlamaCppServer that is closed when t finishes.
func NewLlamaCppServer(t *testing.T, reply string) *LlamaCppServer {
	t.Helper()

	s := &LlamaCppServer{Tokenizer: NewWordTokenizer(), Reply: reply}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /tokenize", s.handleTokenize)
	mux.HandleFunc("POST /detokenize", s.handleDetokenize)
	mux.HandleFunc("POST /completion", s.handleCompletion)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Completions returns the n_predict value of every completion request received.
func (s *LlamaCppServer) Completions() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int{}, s.completions...)
}

func (s *LlamaCppServer) handleTokenize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content    string `json:"content"`
		AddSpecial bool   `json:"add_special"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids, _ := s.Tokenizer.Encode(r.Context(), req.Content, req.AddSpecial)
	writeJSON(w, map[string][]int{"tokens": ids})
}

func (s *LlamaCppServer) handleDetokenize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tokens []int `json:"tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	text, _ := s.Tokenizer.Decode(r.Context(), req.Tokens, false)
	writeJSON(w, map[string]string{"content": text})
}

func (s *LlamaCppServer) handleCompletion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NPredict int `json:"n_predict"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.completions = append(s.completions, req.NPredict)
	s.mu.Unlock()

	ids, _ := s.Tokenizer.Encode(r.Context(), s.Reply, false)
	if req.NPredict >= 0 && len(ids) > req.NPredict {
		ids = ids[:req.NPredict]
	}
	text, _ := s.Tokenizer.Decode(r.Context(), ids, false)
	writeJSON(w, map[string]any{
		"content":          text,
		"tokens":           ids,
		"stop":             true,
		"tokens_predicted": len(ids),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
