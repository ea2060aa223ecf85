// Package directory implements the service directory every Googol role uses
// to find its peers: Register(name, handle), Resolve(name) and List(prefix).
//
// The Directory type is the in-memory implementation served by
// "googol registry"; remote roles reach it through pkg/client. WaitFor and
// Peers are helpers over any types.DirectoryService.
package directory
