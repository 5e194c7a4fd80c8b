package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/novamart/nova-storefront/internal/model"
)

func TestAppendSendsItemAndIncr(t *testing.T) {
	var got struct {
		Item model.ConversationEntry `json:"item"`
		Incr int                     `json:"incr"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/append" {
			t.Errorf("path = %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	entry := model.ConversationEntry{Question: "hello", Role: model.RoleUser, Timestamp: 42}
	if err := c.Append(context.Background(), "tok", entry, 1); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if auth != "Bearer tok" {
		t.Fatalf("authorization = %q", auth)
	}
	if got.Item.Question != "hello" || got.Item.Timestamp != 42 || got.Incr != 1 {
		t.Fatalf("body = %+v", got)
	}
}

func TestAppendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	err := c.Append(context.Background(), "tok", model.ConversationEntry{Question: "x", Timestamp: 1}, 0)
	if err == nil {
		t.Fatal("want error on 502")
	}
}

func TestFetchDecodesChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.UserChat{
			Conversation: []model.ConversationEntry{{Question: "hi", Timestamp: 7}},
			Unread:       3,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	chat, err := c.Fetch(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if chat.Unread != 3 || len(chat.Conversation) != 1 || chat.Conversation[0].Timestamp != 7 {
		t.Fatalf("chat = %+v", chat)
	}
}

func TestDeleteEntryBuildsTimestampPath(t *testing.T) {
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	if err := c.DeleteEntry(context.Background(), "tok", 1699999999999); err != nil {
		t.Fatalf("DeleteEntry: %v", err)
	}
	if method != http.MethodDelete || path != "/api/chat/entry/1699999999999" {
		t.Fatalf("%s %s", method, path)
	}
}

func TestAskReturnsAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.QARequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Question != "where is my order" {
			t.Errorf("question = %q", req.Question)
		}
		json.NewEncoder(w).Encode(model.QAResponse{Answers: []model.Answer{{Text: "on its way", Score: 2}}})
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	answers, err := c.Ask(context.Background(), "where is my order")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answers) != 1 || answers[0].Text != "on its way" {
		t.Fatalf("answers = %+v", answers)
	}
}
