package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/logging"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name: "plain body",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: encode("Rs.999.00 spent on HDFC Bank Card x1234\nat SWIGGY on 2024-01-15")},
			},
			want: "Rs.999.00 spent on HDFC Bank Card x1234 at SWIGGY on 2024-01-15",
		},
		{
			name: "nested multipart prefers plain",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>html</p>")}},
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("INR 1,234.56 spent at AMAZON")}},
						},
					},
				},
			},
			want: "INR 1,234.56 spent at AMAZON",
		},
		{
			name: "html only",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<div>INR 45 debited</div><div>at UBER</div>")}},
				},
			},
			want: "INR 45 debited at UBER",
		},
		{
			name: "unpadded data",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("Rs 1 paid"))},
			},
			want: "Rs 1 paid",
		},
		{
			name:    "no payload data",
			payload: &gmail.MessagePart{MimeType: "text/plain"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractBody(&gmail.Message{Payload: tt.payload})
			if got != tt.want {
				t.Errorf("body: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToRawMessage(t *testing.T) {
	msg := &gmail.Message{
		Id:           "18d0c",
		InternalDate: 1705329045000,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Transaction alert"},
				{Name: "From", Value: `"HDFC Bank InstaAlerts" <alerts@hdfcbank.net>`},
			},
			Body: &gmail.MessagePartBody{Data: encode("Rs.999.00 debited")},
		},
	}

	got, ok := toRawMessage(msg)
	require.True(t, ok)
	assert.Equal(t, api.RawMessage{
		ID:              "18d0c",
		Sender:          "alerts@hdfcbank.net",
		Body:            "Rs.999.00 debited",
		TimestampMillis: 1705329045000,
	}, got)

	_, ok = toRawMessage(&gmail.Message{Id: "empty", Payload: &gmail.MessagePart{MimeType: "text/plain"}})
	assert.False(t, ok)
}

type fakeGmail struct {
	mu       sync.Mutex
	messages map[string]*gmail.Message
	modified []string
}

func (f *fakeGmail) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		var list gmail.ListMessagesResponse
		for id := range f.messages {
			list.Messages = append(list.Messages, &gmail.Message{Id: id})
		}
		_ = json.NewEncoder(w).Encode(&list)
	})
	mux.HandleFunc("GET /gmail/v1/users/me/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		msg, ok := f.messages[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(msg)
	})
	mux.HandleFunc("POST /gmail/v1/users/me/messages/{id}/modify", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.modified = append(f.modified, r.PathValue("id"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	return mux
}

func TestRead_OnceWithAcks(t *testing.T) {
	fake := &fakeGmail{messages: map[string]*gmail.Message{
		"m1": {
			Id:           "m1",
			InternalDate: 1705329045000,
			Payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Headers:  []*gmail.MessagePartHeader{{Name: "From", Value: "alerts@hdfcbank.net"}},
				Body:     &gmail.MessagePartBody{Data: encode("Rs.999.00 spent at SWIGGY")},
			},
		},
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	r, err := New(srv.Client(), Config{
		// Both queries match m1; it must be emitted once.
		Queries: []Query{
			{Name: "hdfc", Query: "from:alerts@hdfcbank.net", Enabled: true},
			{Name: "all", Query: "is:unread", Enabled: true},
			{Name: "off", Query: "label:old", Enabled: false},
		},
		Once:    true,
		Options: []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	}, logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan api.RawMessage, 10)
	acks := make(chan string, 10)
	done := make(chan error, 1)
	go func() { done <- r.Read(ctx, out, acks) }()

	var got []api.RawMessage
	for m := range out {
		got = append(got, m)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "alerts@hdfcbank.net", got[0].Sender)

	acks <- "m1"
	close(acks)
	require.NoError(t, <-done)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"m1"}, fake.modified)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.emitted, "acknowledged ids are forgotten")
}

func TestPrune(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	r := &Reader{emitted: map[string]time.Time{
		"fresh": now.Add(-time.Hour),
		"stale": now.Add(-emittedTTL - time.Minute),
	}}

	r.prune(now)
	assert.Equal(t, map[string]time.Time{"fresh": now.Add(-time.Hour)}, r.emitted)

	assert.False(t, r.claim("fresh"))
	assert.True(t, r.claim("stale"), "pruned ids can be emitted again")
}

func TestNew_RequiresQueries(t *testing.T) {
	_, err := New(http.DefaultClient, Config{}, nil)
	require.Error(t, err)
}
