package lattice

// This file implements the role dispatcher: at startup, a node reads its
// configured "role" and looks it up as a closure name. If the role is
// set and the name is registered, that closure's body is invoked
// locally, in-process, as the node's first process. If the role is
// unset or doesn't match any registered closure, the node simply starts
// serving — listening, discovering peers, and accepting remote spawns —
// without ever running a role body itself.

import "context"

// roleConfigKey is the configuration key read for the startup role.
const roleConfigKey = "role"

// dispatchRole looks up cfg's role key and, if it names a registered
// closure, spawns it as this node's first local process. A missing or
// unknown role is not an error: the node just stays idle, serving remote
// requests.
func (n *Node) dispatchRole(roleName string) {
	if roleName == "" {
		n.logger.Info("no role configured, serving idle")
		return
	}

	entry, ok := n.closures.lookup(roleName)
	if !ok {
		n.logger.Warn("configured role %q has no registered closure, serving idle", roleName)
		return
	}

	n.logger.Info("starting role %q", roleName)
	n.processes.spawnLocal(func(ctx context.Context, self *Process) {
		entry.body(ctx, self, entry.argsZero)
	})
}
