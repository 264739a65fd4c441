// Package proto defines the shared message types exchanged between the
// gateway and the indexer/searcher services over the internal RPC layer
// (see pkg/rpc), and between the public HTTP API and its clients.
//
// The index and search payloads deliberately mirror the public API: the
// gateway validates and forwards them without reshaping.
package proto

// ---------- Register ----------

// RegisterRequest is the (empty) input to the Register operation.
type RegisterRequest struct{}

// RegisterResponse carries the newly issued client identifier.
type RegisterResponse struct {
	ClientID string `json:"clientId"`
}

// ---------- Index ----------

// IndexRequest is the input to the Index.Compute RPC. TermFreqs may be
// empty, in which case the document is recorded with no postings.
type IndexRequest struct {
	ClientID  string         `json:"clientId,omitempty"`
	Path      string         `json:"path"`
	TermFreqs map[string]int `json:"termFreqs,omitempty"`
}

// IndexResponse is the output of the Index.Compute RPC.
type IndexResponse struct {
	Status string `json:"status"`
	DocID  int64  `json:"docId"`
	Path   string `json:"path"`
}

// ---------- Search ----------

// SearchRequest is the input to the Search.Compute RPC. Terms may be empty,
// producing an empty result set.
type SearchRequest struct {
	Terms []string `json:"terms,omitempty"`
}

// SearchResponse is the output of the Search.Compute RPC.
type SearchResponse struct {
	Results []SearchHit `json:"results"`
	Count   int         `json:"count"`
}

// SearchHit is a single ranked document in the result set.
type SearchHit struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// ---------- Health ----------

// HealthCheckResponse mirrors the gRPC health checking protocol.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}
