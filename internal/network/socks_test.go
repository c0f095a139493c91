package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewSOCKS5Dialer_CreatesDialer(t *testing.T) {
	dialer, err := NewSOCKS5Dialer("127.0.0.1", 1080)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dialer == nil {
		t.Fatal("expected non-nil dialer")
	}
}

func TestDialerFunc_EmptyHost_ReturnsNil(t *testing.T) {
	fn := DialerFunc("", 1080)
	if fn != nil {
		t.Fatal("expected nil function for empty host")
	}
}

func TestDialerFunc_NonEmptyHost_ReturnsFunction(t *testing.T) {
	fn := DialerFunc("127.0.0.1", 1080)
	if fn == nil {
		t.Fatal("expected non-nil function for non-empty host")
	}
}

func TestDialerFunc_UnreachableProxyFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	fn := DialerFunc("127.0.0.1", port)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := fn(ctx, "tcp", "example.invalid:6379"); err == nil {
		t.Error("expected error dialing through a closed proxy port")
	}
}

func TestNewRedisClient_Direct(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("k", "v")

	client := NewRedisClient(RedisConfig{Address: mr.Addr()}, nil)
	defer client.Close()

	got, err := client.Get(context.Background(), "k").Result()
	if err != nil || got != "v" {
		t.Errorf("GET = %q, %v", got, err)
	}
}

func TestNewRedisClient_UsesDialFunc(t *testing.T) {
	mr := miniredis.RunT(t)

	dialed := make(chan string, 1)
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		select {
		case dialed <- addr:
		default:
		}
		var d net.Dialer
		return d.DialContext(ctx, network, mr.Addr())
	}

	client := NewRedisClient(RedisConfig{Address: "redis.internal:6379"}, dial)
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("PING failed: %v", err)
	}
	select {
	case addr := <-dialed:
		if addr != "redis.internal:6379" {
			t.Errorf("dialed %q", addr)
		}
	default:
		t.Error("custom dialer not used")
	}
}
