package gmail

import (
	"encoding/base64"
	"testing"

	gmail "google.golang.org/api/gmail/v1"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestHeaderValue(t *testing.T) {
	tests := []struct {
		name       string
		headers    []*gmail.MessagePartHeader
		headerName string
		want       string
	}{
		{
			name: "existing header",
			headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "a@example.com"},
				{Name: "Subject", Value: "Hello"},
			},
			headerName: "Subject",
			want:       "Hello",
		},
		{
			name: "first match wins",
			headers: []*gmail.MessagePartHeader{
				{Name: "Date", Value: "first"},
				{Name: "Date", Value: "second"},
			},
			headerName: "Date",
			want:       "first",
		},
		{
			name: "exact name match",
			headers: []*gmail.MessagePartHeader{
				{Name: "subject", Value: "lowercase"},
			},
			headerName: "Subject",
			want:       "",
		},
		{
			name:       "nil payload",
			headers:    nil,
			headerName: "From",
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &gmail.Message{Payload: &gmail.MessagePart{Headers: tt.headers}}
			if tt.headers == nil {
				msg.Payload = nil
			}

			if got := HeaderValue(msg, tt.headerName); got != tt.want {
				t.Errorf("HeaderValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name    string
		payload *gmail.MessagePart
		want    string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    "",
		},
		{
			name: "single part body",
			payload: &gmail.MessagePart{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: encode("hello world")},
			},
			want: "hello world",
		},
		{
			name: "multipart prefers text/plain",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>hi</p>")}},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("hi")}},
				},
			},
			want: "hi",
		},
		{
			name: "nested text/plain found depth first",
			payload: &gmail.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("nested")}},
						},
					},
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("later")}},
				},
			},
			want: "nested",
		},
		{
			name: "multipart without text/plain",
			payload: &gmail.MessagePart{
				MimeType: "multipart/alternative",
				Body:     &gmail.MessagePartBody{Data: encode("ignored")},
				Parts: []*gmail.MessagePart{
					{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>only html</p>")}},
				},
			},
			want: "",
		},
		{
			name:    "no body at all",
			payload: &gmail.MessagePart{MimeType: "text/plain"},
			want:    "",
		},
		{
			name: "unpadded base64url",
			payload: &gmail.MessagePart{
				Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab?>"))},
			},
			want: "ab?>",
		},
		{
			name: "invalid data",
			payload: &gmail.MessagePart{
				Body: &gmail.MessagePartBody{Data: "!!!not base64!!!"},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBody(tt.payload); got != tt.want {
				t.Errorf("ExtractBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWalkParts(t *testing.T) {
	root := &gmail.MessagePart{
		PartId: "0",
		Parts: []*gmail.MessagePart{
			{PartId: "0.0", Parts: []*gmail.MessagePart{{PartId: "0.0.0"}}},
			{PartId: "0.1"},
		},
	}

	var visited []string
	walkParts(root, func(p *gmail.MessagePart) bool {
		visited = append(visited, p.PartId)
		return true
	})

	want := []string{"0", "0.0", "0.0.0", "0.1"}
	if len(visited) != len(want) {
		t.Fatalf("walkParts() visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("walkParts() visited[%d] = %s, want %s", i, visited[i], want[i])
		}
	}

	count := 0
	walkParts(root, func(p *gmail.MessagePart) bool {
		count++
		return p.PartId != "0.0"
	})
	if count != 2 {
		t.Errorf("walkParts() with early stop visited %d parts, want 2", count)
	}
}
