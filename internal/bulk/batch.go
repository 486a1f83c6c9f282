// Package bulk accumulates documents into bulk-protocol batches and hands
// full batches to a sink, strictly in input order.
package bulk

import (
	"encoding/json"
)

// Batch is a bulk body ready for delivery.
type Batch struct {
	Index  string
	Source string
	Body   []byte
	spans  []span
}

// span locates one record in Body: its header line (if any) starts at
// start, the document line at doc, and the record ends at end (after the
// newline).
type span struct {
	start, doc, end int
}

// Len is the number of documents in the batch.
func (b *Batch) Len() int { return len(b.spans) }

// Documents returns each document line without its header or newline.
// The slices alias Body.
func (b *Batch) Documents() [][]byte {
	docs := make([][]byte, len(b.spans))
	for i, s := range b.spans {
		docs[i] = b.Body[s.doc : s.end-1]
	}
	return docs
}

// ActionHeader returns the bulk operation line for every document: create
// through the enrichment pipeline when one is set, plain create for data
// streams (which reject index), and index otherwise. The target index is
// carried by the request path.
func ActionHeader(pipeline string, dataStream bool) []byte {
	var action map[string]map[string]string
	switch {
	case pipeline != "":
		action = map[string]map[string]string{"create": {"pipeline": pipeline}}
	case dataStream:
		action = map[string]map[string]string{"create": {}}
	default:
		action = map[string]map[string]string{"index": {}}
	}
	b, _ := json.Marshal(action)
	return b
}
