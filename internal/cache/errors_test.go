package cache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

func TestBackendErrorMapping(t *testing.T) {
	other := errors.New("connection refused")

	tests := []struct {
		name string
		fn   func(error) error
		in   error
		want error
	}{
		{name: "redis nil", fn: redisErr, in: redis.Nil, want: ErrNotFound},
		{name: "redis other", fn: redisErr, in: other, want: other},
		{name: "redis ok", fn: redisErr, in: nil, want: nil},
		{name: "pg no rows", fn: pgErr, in: pgx.ErrNoRows, want: ErrNotFound},
		{name: "pg wrapped no rows", fn: pgErr, in: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: ErrNotFound},
		{name: "pg other", fn: pgErr, in: other, want: other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPostgresSource_TableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		want    string
		wantErr bool
	}{
		{name: "default", table: "", want: defaultPostgresTable},
		{name: "custom", table: "kv_cache", want: "kv_cache"},
		{name: "injection", table: "kv; DROP TABLE users", wantErr: true},
		{name: "leading digit", table: "1kv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newPostgresSource(nil, tt.table)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newPostgresSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.table != tt.want {
				t.Fatalf("table = %q, want %q", p.table, tt.want)
			}
		})
	}
}

func TestRedisSource_DefaultPrefix(t *testing.T) {
	src := NewRedisSourceFromClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	defer src.Close()
	if got := src.key("k"); got != defaultRedisPrefix+"k" {
		t.Fatalf("key() = %q", got)
	}
}
