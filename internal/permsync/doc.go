// Package permsync rebuilds the permission store from Active Directory group membership.
//
// Each configured group grants a fixed set of capabilities. A sync cycle queries every
// group, reads the chat identity from a member attribute (pager by default), unions the
// capabilities per identity and publishes the result with one Store.ReplaceAll. The store
// therefore always reflects a snapshot of the last completed cycle, never a superset of
// earlier ones.
//
// A failing group is logged and skipped; members without a usable identity are logged and
// skipped. When every group fails the job publishes an empty store (fail closed) unless
// the keep policy is configured.
package permsync
