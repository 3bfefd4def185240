// Package ping answers UDP discovery probes for the preview server.
package ping

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

const (
	ProbePing = "HELLO"
	ProbeLAN  = "HELLOLAN"
	Reply     = "HI"
)

type Handler struct {
	conn          *net.UDPConn
	mu            sync.RWMutex
	serverInfo    ServerInfo
	logger        *slog.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	done          sync.WaitGroup
	listenAddress string
}

type ServerInfo struct {
	Name       string `json:"name"`
	Clients    int    `json:"clients"`
	MaxClients int    `json:"max_clients"`
	Port       int    `json:"port"`
	Version    string `json:"version"`
}

func NewHandler(address string, info ServerInfo, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		serverInfo:    info,
		logger:        logger,
		stopChan:      make(chan struct{}),
		listenAddress: address,
	}
}

func (h *Handler) Start() error {
	addr, err := net.ResolveUDPAddr("udp", h.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	h.conn = conn
	h.logger.Info("ping handler started", "address", conn.LocalAddr())

	h.done.Add(1)
	go h.handlePackets()

	return nil
}

// Addr is the bound address, valid after Start.
func (h *Handler) Addr() net.Addr {
	if h.conn == nil {
		return nil
	}
	return h.conn.LocalAddr()
}

func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		if h.conn != nil {
			h.conn.Close()
		}
		h.done.Wait()
		h.logger.Info("ping handler stopped")
	})
}

func (h *Handler) UpdateClients(clients int) {
	h.mu.Lock()
	h.serverInfo.Clients = clients
	h.mu.Unlock()
}

func (h *Handler) Info() ServerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.serverInfo
}

func (h *Handler) handlePackets() {
	defer h.done.Done()
	buffer := make([]byte, 1024)

	for {
		n, addr, err := h.conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-h.stopChan:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			h.logger.Error("failed to read UDP packet", "error", err)
			continue
		}

		if n > 0 {
			h.handlePacket(buffer[:n], addr)
		}
	}
}

func (h *Handler) handlePacket(data []byte, addr *net.UDPAddr) {
	switch string(data) {
	case ProbePing:
		h.reply([]byte(Reply), addr)
	case ProbeLAN:
		jsonData, err := json.Marshal(h.Info())
		if err != nil {
			h.logger.Error("failed to marshal server info", "error", err)
			return
		}
		h.reply(jsonData, addr)
	}
}

func (h *Handler) reply(data []byte, addr *net.UDPAddr) {
	if _, err := h.conn.WriteToUDP(data, addr); err != nil {
		h.logger.Error("failed to send ping response", "error", err, "addr", addr)
		return
	}
	h.logger.Debug("sent ping response", "addr", addr, "bytes", len(data))
}
