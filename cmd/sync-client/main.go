package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	synchub "mangashelf/internal/sync"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP sync server address")
	wsURL := flag.String("ws", "", "websocket URL (e.g. ws://localhost:8080/ws); overrides -addr")
	raw := flag.Bool("raw", false, "print events as received")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		var err error
		if *wsURL != "" {
			err = followWS(ctx, *wsURL, *raw, os.Stdout, logger)
		} else {
			err = followTCP(ctx, *addr, *raw, os.Stdout, logger)
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("disconnected", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second): // reconnect
		}
	}
}

func followTCP(ctx context.Context, addr string, raw bool, w io.Writer, logger *slog.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Info("connected", "addr", addr)
	return printLines(conn, raw, w)
}

func followWS(ctx context.Context, url string, raw bool, w io.Writer, logger *slog.Logger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger.Info("connected", "url", url)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		// one frame may carry several newline-delimited events
		if err := printLines(strings.NewReader(string(msg)), raw, w); err != nil {
			return err
		}
	}
}

func printLines(r io.Reader, raw bool, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if raw {
			fmt.Fprintln(w, string(line))
			continue
		}
		fmt.Fprintln(w, formatEvent(line))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

// formatEvent renders one catalog event as a single readable line. Lines
// that are not catalog events are returned unchanged.
func formatEvent(line []byte) string {
	var ev synchub.CatalogEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
		return string(line)
	}

	var b strings.Builder
	if !ev.At.IsZero() {
		b.WriteString(ev.At.Local().Format(time.TimeOnly))
		b.WriteByte(' ')
	}
	b.WriteString(ev.Type)
	if ev.EntryID != 0 {
		fmt.Fprintf(&b, " #%d", ev.EntryID)
	}
	if ev.Title != "" {
		fmt.Fprintf(&b, " %q", ev.Title)
	}
	if ev.Category != "" {
		fmt.Fprintf(&b, " [%s]", ev.Category)
	}
	if ev.Summary != "" {
		b.WriteString(" ")
		b.WriteString(ev.Summary)
	}
	return b.String()
}
