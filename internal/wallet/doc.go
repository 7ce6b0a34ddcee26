// Package wallet owns the wallet session: which provider is connected, which
// account it exposes, and who gets told when either changes.
//
// A Modal stands in for the wallet-selection dialog. It knows the registered
// connectors, remembers the last one used in a SessionCache and asks a
// Chooser when nothing is cached. The Manager drives the session lifecycle on
// top of it and fans session snapshots out to registered listeners.
package wallet
