package sync

import (
	"bufio"
	"context"
	"errors"
	"net"
)

// Server accepts TCP subscribers and registers them with the hub.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.Hub.log
	log.Info("tcp sync listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn("tcp sync accept", "error", err)
			continue
		}

		s.Hub.Add(conn)
		s.Hub.Welcome(conn)
		log.Info("tcp client connected", "remote", conn.RemoteAddr().String())

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				log.Info("tcp client disconnected", "remote", c.RemoteAddr().String())
			}()

			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}
