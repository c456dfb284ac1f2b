// Package bridge receives mutation records from a hosted web view.
//
// A script in the page batches the records reported by its DOM mutation
// observer, assigns each node an ID, and sends every batch as one WebSocket
// frame: binary frames are CBOR, text frames are JSON. Each frame holds an
// array of records:
//
//	[{"kind": "characterData", "target": "n12", "old": "A", "new": "B"}]
//
// Server implements mutation.Source, so it can back the MutationSource of
// an element:
//
//	srv := bridge.NewServer(bridge.ServerConfig{Logger: logger})
//	http.Handle("/mutations", srv)
//	binding := mutation.Bind(srv, sink, mutation.BindConfig{Logger: logger})
package bridge
