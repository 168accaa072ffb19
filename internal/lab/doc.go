// Package lab provisions and supervises a local pod-server demo
// environment. It launches the external personal-data-store server and
// the linked-data viewer, creates the demo accounts and pods through
// the server's own account API, seeds sample resources with their ACL
// sidecars into per-pod storage, and runs the smoke checks used by
// tests and the production binary.
//
// The external server and viewer are treated as black boxes: lab never
// parses resource contents, never evaluates ACLs, and never serves pod
// data itself.
package lab
