// Package rpctest provides an in-process websocket JSON-RPC node for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// Handler answers a request. Returning an *Error sends a JSON-RPC error.
type Handler func(params gjson.Result) (any, error)

// SubscriptionHandler returns the notifications to push after the subscription is confirmed.
type SubscriptionHandler func(params gjson.Result) ([]any, error)

// Error is returned by handlers to produce a JSON-RPC error response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Server is a websocket JSON-RPC node answering from registered handlers.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	subs     map[string]SubscriptionHandler
	calls    map[string]int

	nextSub atomic.Uint64
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		subs:     make(map[string]SubscriptionHandler),
		calls:    make(map[string]int),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

// URL is the ws:// endpoint of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

func (s *Server) HandleSubscription(method string, h SubscriptionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[method] = h
}

// Calls returns how many times method was requested.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req := gjson.ParseBytes(msg)
		id := json.RawMessage(req.Get("id").Raw)
		method := req.Get("method").String()
		params := req.Get("params")

		s.mu.Lock()
		s.calls[method]++
		handler, isCall := s.handlers[method]
		subHandler, isSub := s.subs[method]
		s.mu.Unlock()

		switch {
		case isCall:
			result, err := handler(params)
			s.reply(conn, id, result, err)
		case isSub:
			notifications, err := subHandler(params)
			if err != nil {
				s.reply(conn, id, nil, err)
				continue
			}
			subID := "sub-" + strconv.FormatUint(s.nextSub.Add(1), 10)
			s.reply(conn, id, subID, nil)
			for _, n := range notifications {
				s.write(conn, map[string]any{
					"jsonrpc": "2.0",
					"method":  method,
					"params":  map[string]any{"subscription": subID, "result": n},
				})
			}
		default:
			s.reply(conn, id, nil, &Error{Code: -32601, Message: "Method not found"})
		}
	}
}

func (s *Server) reply(conn *websocket.Conn, id json.RawMessage, result any, err error) {
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if err != nil {
		rpcErr, ok := err.(*Error)
		if !ok {
			rpcErr = &Error{Code: -32000, Message: err.Error()}
		}
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	s.write(conn, resp)
}

// write errors surface on the client as a dropped connection.
func (s *Server) write(conn *websocket.Conn, msg any) {
	_ = conn.WriteJSON(msg)
}
