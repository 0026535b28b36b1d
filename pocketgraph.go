// Package pocketgraph provides the document model for the PocketFlow graph
// editor: the in-memory workflow graph, the mutation operations over it, and
// the node placement resolver.
//
// The wire codec, execution-event consumer, and transport layers live in
// subpackages:
//
//	import "github.com/hamletlg/POCKETFLOWGRAPH/wire"
//	import "github.com/hamletlg/POCKETFLOWGRAPH/execution"
//	import "github.com/hamletlg/POCKETFLOWGRAPH/stream"
//	import "github.com/hamletlg/POCKETFLOWGRAPH/session"
package pocketgraph
