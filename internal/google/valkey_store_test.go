package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewValkeyStore_RequiresURL(t *testing.T) {
	_, err := NewValkeyStore(ValkeyConfig{})
	require.Error(t, err)
}

func TestNewValkeyStore_Unreachable(t *testing.T) {
	_, err := NewValkeyStore(ValkeyConfig{URL: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestValkeyStore_KeyAndExpiration(t *testing.T) {
	s := &ValkeyStore{prefix: DefaultValkeyKeyPrefix, ttl: time.Hour}

	assert.Equal(t, "mailbot:session:abc", s.key("abc"))

	tests := []struct {
		name string
		tok  *oauth2.Token
		min  time.Duration
		max  time.Duration
	}{
		{"no expiry", &oauth2.Token{AccessToken: "a"}, time.Hour, time.Hour},
		{"expires sooner", &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(10 * time.Minute)}, 9 * time.Minute, 10 * time.Minute},
		{"expires later", &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(5 * time.Hour)}, time.Hour, time.Hour},
		{"already expired", &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Minute)}, time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.expiration(tt.tok)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}
