package lattice

// pingLoop sends a keepalive Ping frame to a peer at PingInterval as
// long as the connection stays up, exiting as soon as ctx is cancelled
// (which happens whenever the read or write side of the same session
// fails, since runSession cancels all three on the first error).

import (
	"context"
	"time"

	"github.com/latticerun/lattice/internal"
)

// PingInterval is the interval between keepalive Ping frames sent on an
// otherwise idle connection.
var PingInterval = 30 * time.Second

func pingLoop(ctx context.Context, pc *peerConnection) error {
	t := time.NewTicker(PingInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if err := pc.send(tagPing, &internal.Ping{}); err != nil {
				return err
			}
		}
	}
}
