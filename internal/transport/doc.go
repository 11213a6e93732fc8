// Package transport is the concrete Transport/Starter implementation
// behind the dispatchz.Transport interface: one TCP listener on the
// master, one yamux-multiplexed stream per worker slot, msgpack-framed
// Greeting/Work/Stop/Result messages, and spawn-on-host over SSH (or a
// direct os/exec fork for the local host).
package transport
