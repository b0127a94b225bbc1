/*

Executable latticed runs one node of a lattice cluster, configured from
a TOML file, and demonstrates a one-way chat between two named roles —
"talker" and "listener" — using a registered closure as each role's
entry point.

Usage:

	latticed -config node1.toml
	latticed -config node2.toml

The two nodes discover each other via the known-hosts/port-range
configured in each TOML file; once connected, the "talker" node sends a
Message to the "listener" node every few seconds.

*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/latticerun/lattice"
	"github.com/latticerun/lattice/config"
	"github.com/latticerun/lattice/latticetls"
)

// Message is the payload exchanged between the talker and listener
// roles; it must be registered with RegisterType before either role
// runs, since it crosses the wire.
type Message struct {
	From string
	Text string
}

func main() {
	configPath := flag.String("config", "", "path to a TOML node configuration file")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "must pass -config")
		os.Exit(1)
	}

	cfg, err := config.FromTOMLFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	var opts []lattice.Option
	if certPath, ok := cfg.String("tls-cert"); ok && certPath != "" {
		keyPath, _ := cfg.String("tls-key")
		tlsConfig, err := latticetls.LoadConfig(certPath, keyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading tls config: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, lattice.WithTLSConfig(tlsConfig))
	}

	node, err := lattice.New(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting node: %v\n", err)
		os.Exit(1)
	}

	lattice.RegisterType(Message{})

	peerHost, _ := cfg.String("peer-hostname")
	peerPort, _ := cfg.Int("peer-port")

	node.RegisterClosure("listener", Message{}, func(ctx context.Context, self *lattice.Process, args interface{}) {
		fmt.Println("listener started:", self.ID())
		for {
			msg, err := self.Mailbox.ReceiveNext()
			if err != nil {
				return
			}
			m := msg.(Message)
			fmt.Printf("[%s]: %s\n", m.From, m.Text)
		}
	})

	node.RegisterClosure("talker", Message{}, func(ctx context.Context, self *lattice.Process, args interface{}) {
		if peerHost == "" {
			fmt.Println("no peer-hostname configured, talker idling")
			<-ctx.Done()
			return
		}
		var remote lattice.ProcessID
		for {
			peer, ok := node.ResolvePeer(peerHost, uint16(peerPort))
			if ok {
				var err error
				remote, err = node.SpawnRemote(ctx, peer, lattice.Closure{Name: "listener"})
				if err == nil {
					break
				}
				fmt.Fprintln(os.Stderr, "spawn remote listener:", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}

		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = node.Send(remote, Message{From: node.ID().String(), Text: "hello"})
			}
		}
	})

	node.Start()
	defer node.Stop()

	node.Wait()
}
