// Package ledgertest provides an in-process fake ledger service built on gin.
// It backs end-to-end tests and the hidden ledger-sim command.
package ledgertest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrz1836/payflow/internal/ledger"
)

// Call is one request received by the fake ledger.
type Call struct {
	Op    string
	Body  map[string]any
	Raw   []byte
	Token string
	At    time.Time
}

// String returns a body field as a string, or "" when absent.
func (c Call) String(key string) string {
	v, ok := c.Body[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Factors returns the factors map sent with the request, if any.
func (c Call) Factors() map[string]string {
	raw, ok := c.Body["factors"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Responder answers one request. n is the 1-based number of calls to the
// operation so far. A []byte body is written verbatim; anything else is JSON encoded.
type Responder func(n int, call Call) (status int, body any)

// Server is a scriptable fake ledger.
type Server struct {
	mu         sync.Mutex
	calls      []Call
	counts     map[string]int
	responders map[string]Responder
	engine     *gin.Engine
	httpServer *httptest.Server
}

// New creates a fake ledger with the simulator's default behavior.
func New() *Server {
	return NewSimulator(SimOptions{})
}

// NewEmpty creates a fake ledger that answers 404 until responders are set.
func NewEmpty() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		counts:     make(map[string]int),
		responders: make(map[string]Responder),
		engine:     gin.New(),
	}
	s.engine.Use(gin.Recovery())
	for _, op := range []string{ledger.OpFeePresets, ledger.OpEstimateFee, ledger.OpSend, ledger.OpLogin} {
		s.engine.POST("/"+op, s.handle(op))
	}
	return s
}

// Handle sets the responder for an operation.
func (s *Server) Handle(op string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[op] = r
}

// Handler returns the HTTP handler, for serving on a real listener.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves the fake ledger on a loopback listener and returns its URL.
func (s *Server) Start() string {
	s.httpServer = httptest.NewServer(s.engine)
	return s.httpServer.URL
}

// URL returns the base URL of a started server.
func (s *Server) URL() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.URL
}

// Close stops a started server.
func (s *Server) Close() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
}

// Calls returns the recorded requests for op, or all requests when op is empty.
func (s *Server) Calls(op string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Call, 0, len(s.calls))
	for _, c := range s.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many requests were made to op.
func (s *Server) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[op]
}

func (s *Server) handle(op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
			return
		}

		call := Call{
			Op:    op,
			Raw:   raw,
			Token: strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "),
			At:    time.Now(),
		}
		_ = json.Unmarshal(raw, &call.Body)

		s.mu.Lock()
		s.counts[op]++
		n := s.counts[op]
		s.calls = append(s.calls, call)
		responder := s.responders[op]
		s.mu.Unlock()

		if responder == nil {
			c.JSON(http.StatusNotFound, gin.H{"message": "no responder for " + op})
			return
		}

		status, body := responder(n, call)
		if b, ok := body.([]byte); ok {
			c.Data(status, "application/json", b)
			return
		}
		c.JSON(status, body)
	}
}

// Wait answers the "not ready" sentinel.
func Wait() (int, any) {
	return http.StatusOK, ledger.WaitSentinel
}

// Message answers a terminal rejection.
func Message(status int, msg string) (int, any) {
	return status, gin.H{"message": msg}
}

// FactorsRequired answers an MFA demand. contexts maps factor name to its blob.
func FactorsRequired(factors []string, contexts map[string]string, msg string) (int, any) {
	info := gin.H{}
	for k, v := range contexts {
		info[k] = v
	}
	return http.StatusOK, gin.H{
		"isFactorsSent":         true,
		"requiredFactors":       factors,
		"additionalInformation": info,
		"message":               msg,
	}
}
