/*

Package lattice implements Erlang-style message-passing concurrency across
a cluster of cooperating runtime instances.

What This Gives You

Essentially what an Erlang-like runtime gives you is two things:

  - A process identifier (ProcessID) which can be sent messages from
    anywhere within the cluster. The message itself may include
    ProcessIDs and SendPorts, which remain live and useful through the
    transfer.
  - A way to get a process running on a named peer without shipping code:
    a Closure is a symbolic name plus encoded arguments, resolved against
    a registry the peer already has loaded.

Mailboxes and Channels

Go channels are synchronous; Erlang-style messages are asynchronous. Code
that makes a call to another "process" and blocks on the reply is a very
common pattern in ported Erlang code, and it does not map onto a
synchronous channel without real care (the sender can't also be draining
its own inbox while it waits). This package provides two message-passing
primitives to cover both shapes:

  - A Mailbox is an unbounded, single-consumer FIFO of heterogeneous,
    typed envelopes. Receive lets you select which message to consume
    next by type, leaving non-matching messages in place for a later
    Receive. This is the direct equivalent of Erlang's "receive ... end"
    with pattern clauses.
  - A channel (SendPort[T] / ReceivePort[T]) is a lighter-weight, strictly
    typed, non-selective FIFO — closer to a Go channel, but with a
    send-side handle that can cross the network.

A ProcessID addresses a Mailbox. It can be sent over the wire to another
node and used there exactly as it is used locally; the routing is
transparent to the sender. A SendPort can likewise be sent over the wire.
A ReceivePort cannot — it is only ever held by the node that created it.

Clustering

Nodes discover each other by probing a configured list of hosts across a
bounded port range, then gossip what they've learned to already-connected
peers. Once two nodes have a live connection, ProcessIDs and SendPorts
minted by either one are valid send targets from the other, with delivery
that is FIFO per (sender, receiver) pair and at-most-once — a connection
drop may lose messages in flight, but never duplicates or reorders them.

Remote Spawn

SpawnRemote(ctx, nodeID, closure) starts a process on a named peer without shipping
any code: the Closure carries a symbolic name and encoded arguments, and
the peer must already have that name registered against a body at
startup. There is no way to capture mutable state from the caller in a
Closure — only the named top-level body and the encoded arguments cross
the wire.

Supervision

The node's transport, peer prober, and per-peer connections run as
github.com/thejerf/suture services under one Supervisor, so failures in
any of them are restarted with backoff rather than silently vanishing.

*/
package lattice
