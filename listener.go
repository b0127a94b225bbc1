package lattice

// This file implements the inbound side of peer connectivity: a TCP
// listener that accepts connections, performs the magic-token handshake
// as the accepting side, and hands each successfully-handshaken
// connection off to the peerConnection responsible for that peer
// (adopting it if one doesn't exist yet).

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// nodeListener runs as a suture service for the lifetime of the node,
// accepting inbound connections on the node's advertised host:port.
type nodeListener struct {
	node     *Node
	listener net.Listener
}

func newNodeListener(n *Node) *nodeListener {
	return &nodeListener{node: n}
}

func (nl *nodeListener) String() string {
	return fmt.Sprintf("listener(%s:%d)", nl.node.id.Host, nl.node.id.Port)
}

func (nl *nodeListener) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", nl.node.id.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("lattice: listening on %s: %w", addr, err)
	}
	nl.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		go nl.handleConn(conn)
	}
}

func (nl *nodeListener) handleConn(conn net.Conn) {
	if nl.node.tlsConfig != nil {
		conn = tls.Server(conn, nl.node.tlsConfig)
	}
	peerID, err := handshakeInbound(conn, nl.node.id, nl.node.magic)
	if err != nil {
		nl.node.logger.Warn("inbound handshake from %s failed: %s", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	nl.node.logger.Info("accepted connection from %s", peerID)
	pc := nl.node.directory.learn(peerID)
	if pc == nil {
		conn.Close()
		return
	}
	pc.adopt(conn)
}
