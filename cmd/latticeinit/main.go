/*

Executable latticeinit generates a self-signed TLS certificate and key
pair for a node that wants to layer optional transport security on top
of the magic-token handshake, and writes a starter TOML configuration
file referencing them.

Usage:

	latticeinit -host localhost -port 9001 -out node1

writes node1.toml, node1.crt, and node1.key.

*/
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/latticerun/lattice/latticetls"
)

func main() {
	host := flag.String("host", "localhost", "hostname this node will advertise")
	port := flag.Int("port", 9001, "port this node will listen on")
	magic := flag.String("magic", "change-me", "shared magic token for this cluster")
	out := flag.String("out", "node", "output file prefix")
	validity := flag.Duration("validity", 365*24*time.Hour, "certificate validity duration")
	flag.Parse()

	certPath := *out + ".crt"
	keyPath := *out + ".key"
	cfgPath := *out + ".toml"

	if err := latticetls.WriteSelfSigned(certPath, keyPath, *host, []string{*host}, *validity); err != nil {
		fmt.Fprintln(os.Stderr, "generating certificate:", err)
		os.Exit(1)
	}

	cfg := fmt.Sprintf(`hostname = %q
listen-port = %d
magic = %q
known-hosts = []
port-range = [%d, %d]
connect-backoff-ms = [100, 30000]
tls-cert = %q
tls-key = %q
`, *host, *port, *magic, *port, *port+10, certPath, keyPath)

	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "writing config:", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s, %s, %s\n", cfgPath, certPath, keyPath)
}
