package redis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"chartfeed/internal/domain/model"
)

// fakeRedis speaks just enough RESP2 for SET/GET and records every SET.
type fakeRedis struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]string
	sets [][]string
}

func newFakeRedis(t *testing.T) *fakeRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeRedis{ln: ln, data: map[string]string{}}
	t.Cleanup(func() { ln.Close() })
	go f.serve()
	return f
}

func (f *fakeRedis) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, f.exec(args)); err != nil {
			return
		}
	}
}

func (f *fakeRedis) exec(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch strings.ToUpper(args[0]) {
	case "SET":
		f.data[args[1]] = args[2]
		f.sets = append(f.sets, args)
		return "+OK\r\n"
	case "GET":
		v, ok := f.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "PING":
		return "+PONG\r\n"
	default:
		return "-ERR unknown command\r\n"
	}
}

func (f *fakeRedis) setCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.sets...)
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "*")))
	if err != nil {
		return nil, err
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		head, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(head, "$")))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}
	return args, nil
}

func newClient(t *testing.T, addr string) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr, Protocol: 2, DisableIdentity: true})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestLastBarRepoKey(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()

	if got := New(rdb, "feed", 0).Key("Binance:BTC/USDT"); got != "feed:lastbar:Binance:BTC/USDT" {
		t.Errorf("unexpected key %s", got)
	}
	if got := New(rdb, "", 0).Key("Kraken:XBT/EUR"); got != "chartfeed:lastbar:Kraken:XBT/EUR" {
		t.Errorf("expected default prefix, got %s", got)
	}
}

func TestLastBarRepoSetGet(t *testing.T) {
	srv := newFakeRedis(t)
	repo := New(newClient(t, srv.ln.Addr().String()), "feed", 0)
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "Binance:BTC/USDT"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	bar := model.Bar{Time: 120, Open: 1, High: 2, Low: 0.5, Close: 1.5}
	if err := repo.Set(ctx, "Binance:BTC/USDT", bar); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := repo.Get(ctx, "Binance:BTC/USDT")
	if err != nil || !ok || got != bar {
		t.Errorf("Get = %+v, %v, %v", got, ok, err)
	}

	sets := srv.setCalls()
	if len(sets) != 1 || len(sets[0]) != 3 {
		t.Errorf("zero ttl must not expire, got %v", sets)
	}
}

func TestLastBarRepoTTLIsPerSymbol(t *testing.T) {
	srv := newFakeRedis(t)
	repo := New(newClient(t, srv.ln.Addr().String()), "feed", time.Hour)
	ctx := context.Background()

	for _, sym := range []string{"Binance:BTC/USDT", "Kraken:XBT/EUR"} {
		if err := repo.Set(ctx, sym, model.Bar{Time: 60}); err != nil {
			t.Fatalf("Set %s failed: %v", sym, err)
		}
	}

	sets := srv.setCalls()
	if len(sets) != 2 {
		t.Fatalf("expected 2 SETs, got %v", sets)
	}
	for i, sym := range []string{"Binance:BTC/USDT", "Kraken:XBT/EUR"} {
		args := sets[i]
		if args[1] != "feed:lastbar:"+sym {
			t.Errorf("unexpected key %s", args[1])
		}
		if len(args) != 5 || strings.ToUpper(args[3]) != "EX" || args[4] != "3600" {
			t.Errorf("expected EX 3600 on %s, got %v", sym, args)
		}
	}
}

func TestLastBarRepoGetUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	_, ok, err := New(rdb, "feed", 0).Get(context.Background(), "Binance:BTC/USDT")
	if err == nil || ok {
		t.Errorf("expected connection error, got ok=%v err=%v", ok, err)
	}
}
