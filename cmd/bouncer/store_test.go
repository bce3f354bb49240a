package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/wso2/open-auth-bouncer/internal/config"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

func TestMakeSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name        string
		cfg         config.SessionConfig
		expectError bool
	}{
		{name: "Memory", cfg: config.SessionConfig{Store: config.MemoryStore}},
		{name: "Redis", cfg: config.SessionConfig{Store: config.RedisStore, Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "bouncer:"}}},
		{name: "Redis unreachable", cfg: config.SessionConfig{Store: config.RedisStore, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}, expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, closeStore, err := MakeSessionStore(context.Background(), tc.cfg)
			if tc.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			defer closeStore()

			sess := session.New("abc")
			sess.SetRedirectPath("/x")
			if err := store.Save(context.Background(), sess, time.Minute); err != nil {
				t.Fatalf("Failed to save: %v", err)
			}
			got, err := store.Get(context.Background(), "abc")
			if err != nil || got.RedirectPath != "/x" {
				t.Errorf("Expected stored session, got %v, %v", got, err)
			}
		})
	}
}
