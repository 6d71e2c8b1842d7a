// Package gmailtest provides an in-memory Gmail REST server for tests.
//
// The server implements the subset of users.labels and users.messages that
// mailbot calls and speaks the same JSON error envelope as Gmail, so a real
// gmail.Client can be pointed at it with Options.
package gmailtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const basePath = "/gmail/v1/users/me"

// Server is a fake Gmail API.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	labels       map[string]*gmail.Label
	labelOrder   []string
	messages     map[string]*gmail.Message
	messageOrder []string
	failures     map[string]int
	nextLabel    int
	requests     int
}

// NewServer starts a fake Gmail server seeded with the INBOX system label.
// The server is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		labels:   make(map[string]*gmail.Label),
		messages: make(map[string]*gmail.Message),
		failures: make(map[string]int),
	}
	s.addLabel(&gmail.Label{Id: "INBOX", Name: "INBOX", Type: "system"})

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+basePath+"/labels", s.handleListLabels)
	mux.HandleFunc("POST "+basePath+"/labels", s.handleCreateLabel)
	mux.HandleFunc("PATCH "+basePath+"/labels/{id}", s.handlePatchLabel)
	mux.HandleFunc("DELETE "+basePath+"/labels/{id}", s.handleDeleteLabel)
	mux.HandleFunc("GET "+basePath+"/messages", s.handleListMessages)
	mux.HandleFunc("GET "+basePath+"/messages/{id}", s.handleGetMessage)
	mux.HandleFunc("POST "+basePath+"/messages/{id}/modify", s.handleModifyMessage)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Options returns client options that route a gmail.Client to this server.
func (s *Server) Options() []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(s.URL + "/"),
		option.WithHTTPClient(s.Client()),
	}
}

// Requests returns the number of requests the server has received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// AddUserLabel seeds a user label.
func (s *Server) AddUserLabel(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLabel(&gmail.Label{
		Id:                    id,
		Name:                  name,
		Type:                  "user",
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	})
}

// AddMessage seeds a message. Messages are listed newest first, so the most
// recently added message is returned first.
func (s *Server) AddMessage(msg *gmail.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.Id]; !ok {
		s.messageOrder = append([]string{msg.Id}, s.messageOrder...)
	}
	s.messages[msg.Id] = msg
}

// FailMessage makes every request touching the message fail with code.
func (s *Server) FailMessage(id string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = code
}

// Label returns a copy of the stored label.
func (s *Server) Label(id string) (gmail.Label, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.labels[id]
	if !ok {
		return gmail.Label{}, false
	}
	return *l, true
}

// MessageLabels returns the label ids currently on the message, sorted.
func (s *Server) MessageLabels(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil
	}
	out := append([]string(nil), m.LabelIds...)
	sort.Strings(out)
	return out
}

func (s *Server) addLabel(l *gmail.Label) {
	if _, ok := s.labels[l.Id]; !ok {
		s.labelOrder = append(s.labelOrder, l.Id)
	}
	s.labels[l.Id] = l
}

func (s *Server) handleListLabels(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := &gmail.ListLabelsResponse{Labels: []*gmail.Label{}}
	for _, id := range s.labelOrder {
		l := *s.labels[id]
		resp.Labels = append(resp.Labels, &l)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var in gmail.Label
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid label name")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.labels {
		if l.Name == in.Name {
			writeError(w, http.StatusConflict, "alreadyExists", "Label name exists or conflicts")
			return
		}
	}
	s.nextLabel++
	label := &gmail.Label{
		Id:                    "Label_new_" + strconv.Itoa(s.nextLabel),
		Name:                  in.Name,
		Type:                  "user",
		LabelListVisibility:   in.LabelListVisibility,
		MessageListVisibility: in.MessageListVisibility,
	}
	s.addLabel(label)
	writeJSON(w, http.StatusOK, label)
}

func (s *Server) handlePatchLabel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in gmail.Label
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	label, ok := s.labels[id]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", "Requested entity was not found.")
		return
	}
	if label.Type == "system" {
		writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid label: "+id)
		return
	}
	if in.Name != "" {
		label.Name = in.Name
	}
	out := *label
	writeJSON(w, http.StatusOK, &out)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	label, ok := s.labels[id]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", "Requested entity was not found.")
		return
	}
	if label.Type == "system" {
		writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid delete request")
		return
	}
	delete(s.labels, id)
	for i, lid := range s.labelOrder {
		if lid == id {
			s.labelOrder = append(s.labelOrder[:i], s.labelOrder[i+1:]...)
			break
		}
	}
	for _, m := range s.messages {
		m.LabelIds = without(m.LabelIds, []string{id})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	max := -1
	if v := r.URL.Query().Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid maxResults")
			return
		}
		max = n
	}

	s.mu.Lock()
	resp := &gmail.ListMessagesResponse{Messages: []*gmail.Message{}}
	for i, id := range s.messageOrder {
		if max >= 0 && i >= max {
			break
		}
		resp.Messages = append(resp.Messages, &gmail.Message{Id: id, ThreadId: s.messages[id].ThreadId})
	}
	resp.ResultSizeEstimate = int64(len(resp.Messages))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if code, ok := s.failures[id]; ok {
		writeError(w, code, "backendError", fmt.Sprintf("failure injected for %s", id))
		return
	}
	m, ok := s.messages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", "Requested entity was not found.")
		return
	}
	out := *m
	writeJSON(w, http.StatusOK, &out)
}

func (s *Server) handleModifyMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req gmail.ModifyMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if code, ok := s.failures[id]; ok {
		writeError(w, code, "backendError", fmt.Sprintf("failure injected for %s", id))
		return
	}
	m, ok := s.messages[id]
	if !ok {
		writeError(w, http.StatusNotFound, "notFound", "Requested entity was not found.")
		return
	}
	for _, lid := range req.AddLabelIds {
		if _, ok := s.labels[lid]; !ok {
			writeError(w, http.StatusBadRequest, "invalidArgument", "Invalid label: "+lid)
			return
		}
	}
	labels := without(m.LabelIds, req.RemoveLabelIds)
	for _, lid := range req.AddLabelIds {
		if !contains(labels, lid) {
			labels = append(labels, lid)
		}
	}
	m.LabelIds = labels
	writeJSON(w, http.StatusOK, &gmail.Message{Id: m.Id, ThreadId: m.ThreadId, LabelIds: labels})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func without(list, remove []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if !contains(remove, s) {
			out = append(out, s)
		}
	}
	return out
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Errors  []errorReason `json:"errors"`
}

type errorReason struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, reason, message string) {
	writeJSON(w, code, errorBody{Error: errorDetail{
		Code:    code,
		Message: message,
		Errors:  []errorReason{{Reason: reason, Message: message}},
	}})
}
