// Package server streams generated terrain to preview clients over ENet.
package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/codecat/go-enet"

	"github.com/siohaza/terragen/internal/export"
	"github.com/siohaza/terragen/internal/network"
	"github.com/siohaza/terragen/internal/ping"
	"github.com/siohaza/terragen/internal/protocol"
	"github.com/siohaza/terragen/pkg/config"
	"github.com/siohaza/terragen/pkg/terrain"
)

const (
	pollInterval   = 10 * time.Millisecond
	eventsPerPoll  = 100
	resultsBacklog = 64

	DisconnectReasonProtocol uint32 = 1
	DisconnectReasonShutdown uint32 = 5
)

// Transport is the part of the ENet host the server sends through.
type Transport interface {
	SendPacket(peer enet.Peer, data []byte, reliable bool) error
	Broadcast(data []byte, reliable bool) error
	DisconnectPeerWithReason(peer enet.Peer, immediate bool, reason uint32)
}

type session struct {
	peer     enet.Peer
	runner   *terrain.Runner
	requests int
}

type result struct {
	session *session
	request int
	model   *terrain.Model
	err     error
}

type Server struct {
	config    *config.Config
	network   *network.Server
	ping      *ping.Handler
	transport Transport
	pipeline  *terrain.Pipeline
	logger    *slog.Logger
	sessions  map[enet.Peer]*session
	results   chan result
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	net, err := network.NewServer(cfg.Server.Port, cfg.Server.MaxPeers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create network server: %w", err)
	}

	srv := newServer(cfg, net, logger)
	srv.network = net
	return srv, nil
}

func newServer(cfg *config.Config, transport Transport, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:    cfg,
		transport: transport,
		pipeline:  terrain.NewPipeline(logger),
		logger:    logger,
		sessions:  make(map[enet.Peer]*session),
		results:   make(chan result, resultsBacklog),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Version is reported to discovery probes.
var Version = "0.1.0"

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.network.Start(); err != nil {
		return err
	}
	defer s.Stop()

	if s.config.Server.Discovery != nil && *s.config.Server.Discovery {
		listenAddr := fmt.Sprintf(":%d", s.config.Server.Port+1)
		s.ping = ping.NewHandler(listenAddr, ping.ServerInfo{
			Name:       s.config.Server.Name,
			MaxClients: s.config.Server.MaxPeers,
			Port:       s.config.Server.Port,
			Version:    Version,
		}, s.logger)
		if err := s.ping.Start(); err != nil {
			s.logger.Warn("discovery disabled", "error", err)
			s.ping = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server context cancelled, exiting run loop")
			return nil
		case <-s.ctx.Done():
			return nil
		default:
		}

		s.drainResults()
		s.handleNetworkEvents()
	}
}

func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping server")
		s.cancel()

		if len(s.sessions) > 0 {
			s.broadcastStatus(protocol.StatusCancelled, "server shutting down")
		}
		for peer, sess := range s.sessions {
			sess.runner.Cancel()
			s.transport.DisconnectPeerWithReason(peer, false, DisconnectReasonShutdown)
		}
		s.wg.Wait()
		s.sessions = make(map[enet.Peer]*session)

		if s.ping != nil {
			s.ping.Stop()
		}
		if s.network != nil {
			s.network.Stop()
		}
	})
}

func (s *Server) handleNetworkEvents() {
	for i := 0; i < eventsPerPoll; i++ {
		timeout := time.Duration(0)
		if i == 0 {
			timeout = pollInterval
		}

		event, err := s.network.Service(timeout)
		if err != nil {
			s.logger.Error("network service error", "error", err)
			return
		}

		switch event.Type {
		case network.EventTypeNone:
			return

		case network.EventTypeConnect:
			s.handleConnect(event.Peer)

		case network.EventTypeDisconnect:
			s.handleDisconnect(event.Peer)

		case network.EventTypeReceive:
			s.handlePacket(event.Peer, event.Data)
		}
	}
}

func (s *Server) drainResults() {
	for {
		select {
		case r := <-s.results:
			s.handleResult(r)
		default:
			return
		}
	}
}

func (s *Server) handleConnect(peer enet.Peer) {
	s.sessions[peer] = &session{
		peer:   peer,
		runner: terrain.NewRunner(s.pipeline, s.logger),
	}
	s.logger.Info("client connected", "clients", len(s.sessions))
	s.updateDiscovery()
}

func (s *Server) handleDisconnect(peer enet.Peer) {
	sess, ok := s.sessions[peer]
	if !ok {
		return
	}
	sess.runner.Cancel()
	delete(s.sessions, peer)
	s.logger.Info("client disconnected", "requests", sess.requests, "clients", len(s.sessions))
	s.updateDiscovery()
}

func (s *Server) updateDiscovery() {
	if s.ping != nil {
		s.ping.UpdateClients(len(s.sessions))
	}
}

func (s *Server) handlePacket(peer enet.Peer, data []byte) {
	sess, ok := s.sessions[peer]
	if !ok {
		return
	}

	packetType, err := protocol.ReadPacketType(data)
	if err != nil {
		s.logger.Warn("dropping empty packet")
		return
	}

	switch packetType {
	case protocol.PacketTypeGenerate:
		s.handleGenerate(sess, data)

	case protocol.PacketTypeCancel:
		sess.runner.Cancel()
		s.logger.Debug("generation cancelled by client", "requests", sess.requests)

	default:
		s.logger.Warn("unexpected packet type, disconnecting", "type", packetType)
		s.transport.DisconnectPeerWithReason(peer, false, DisconnectReasonProtocol)
	}
}

func (s *Server) handleGenerate(sess *session, data []byte) {
	var pkt protocol.PacketGenerate
	if err := pkt.Read(data); err != nil {
		s.sendStatus(sess.peer, protocol.StatusInvalid, err.Error())
		return
	}

	params, err := pkt.Params()
	if err == nil {
		err = terrain.ValidateGrid(int(pkt.Width), int(pkt.Rows))
	}
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		s.sendStatus(sess.peer, protocol.StatusInvalid, err.Error())
		return
	}

	sess.requests++
	request := sess.requests
	width, rows := int(pkt.Width), int(pkt.Rows)

	s.logger.Debug("generation requested", "request", request, "seed", params.Seed, "width", width, "rows", rows)

	ticket := sess.runner.Begin(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		model, err := sess.runner.Run(ticket, params, width, rows)
		select {
		case s.results <- result{session: sess, request: request, model: model, err: err}:
		case <-s.ctx.Done():
		}
	}()
}

func (s *Server) handleResult(r result) {
	if s.sessions[r.session.peer] != r.session {
		s.logger.Debug("dropping result for departed client", "request", r.request)
		return
	}
	if r.request != r.session.requests {
		s.logger.Debug("dropping superseded result", "request", r.request, "latest", r.session.requests)
		return
	}

	switch {
	case errors.Is(r.err, terrain.ErrCancelled):
		s.logger.Debug("generation superseded", "request", r.request)

	case errors.Is(r.err, terrain.ErrInvalidParameter):
		s.sendStatus(r.session.peer, protocol.StatusInvalid, r.err.Error())

	case r.err != nil:
		s.logger.Error("generation failed", "request", r.request, "error", r.err)
		s.sendStatus(r.session.peer, protocol.StatusInternal, r.err.Error())

	default:
		if err := s.sendModel(r.session.peer, r.model); err != nil {
			s.logger.Error("failed to send model", "request", r.request, "error", err)
			s.sendStatus(r.session.peer, protocol.StatusInternal, err.Error())
			return
		}
		s.sendStatus(r.session.peer, protocol.StatusOK, "ready")
	}
}

func (s *Server) sendModel(peer enet.Peer, m *terrain.Model) error {
	depth := s.config.Output.VXLDepth
	hf, err := export.Heightfield(m, depth)
	if err != nil {
		return fmt.Errorf("failed to build heightfield: %w", err)
	}

	var compressed bytes.Buffer
	if err := hf.WriteCompressed(&compressed); err != nil {
		return fmt.Errorf("failed to compress map data: %w", err)
	}
	data := compressed.Bytes()

	startPacket := protocol.PacketMapStart{
		PacketID: uint8(protocol.PacketTypeMapStart),
		MapSize:  uint32(len(data)),
	}
	s.logger.Info("sending map", "size", len(data), "seed", m.Seed())
	s.sendPacket(peer, &startPacket, true)

	chunkSize := s.config.Server.ChunkSize
	for i := 0; i < len(data); i += chunkSize {
		end := min(i+chunkSize, len(data))
		chunkPacket := protocol.PacketMapChunk{
			PacketID: uint8(protocol.PacketTypeMapChunk),
			Data:     data[i:end],
		}
		s.sendPacket(peer, &chunkPacket, true)
	}

	s.sendPacket(peer, protocol.NewModelInfo(m, depth), true)
	return nil
}

func (s *Server) sendStatus(peer enet.Peer, code protocol.StatusCode, message string) {
	s.sendPacket(peer, protocol.NewStatus(code, message), true)
}

func (s *Server) broadcastStatus(code protocol.StatusCode, message string) {
	data, err := marshalPacket(protocol.NewStatus(code, message))
	if err != nil {
		s.logger.Error("failed to encode packet", "error", err)
		return
	}
	if err := s.transport.Broadcast(data, true); err != nil {
		s.logger.Error("failed to broadcast packet", "error", err)
	}
}

func marshalPacket(packet interface{}) ([]byte, error) {
	var buf bytes.Buffer

	if writer, ok := packet.(interface{ Write(io.Writer) error }); ok {
		if err := writer.Write(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := binary.Write(&buf, binary.LittleEndian, packet); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (s *Server) sendPacket(peer enet.Peer, packet interface{}, reliable bool) {
	data, err := marshalPacket(packet)
	if err != nil {
		s.logger.Error("failed to encode packet", "error", err)
		return
	}

	if len(data) > 0 {
		level := slog.LevelDebug
		if data[0] == uint8(protocol.PacketTypeMapStart) {
			level = slog.LevelInfo
		}
		s.logger.LogAttrs(context.Background(), level, "sending packet",
			slog.Int("type", int(data[0])),
			slog.Int("len", len(data)),
			slog.Bool("reliable", reliable))
	}

	if err := s.transport.SendPacket(peer, data, reliable); err != nil {
		s.logger.Error("failed to send packet", "error", err)
	}
}
