package transport

// Payload and response bodies for every RPC in the closed command set.
// Requests are `<command> <json>`; responses are JSON objects with at
// least a status field (see protocol.go's Response).

type NodeDescriptor struct {
	Addr string `json:"addr"`
	// Exhausted is set on a find_successor response whose recursion ran
	// out of hops before resolving the true owner; Addr is still the
	// best candidate found along the way.
	Exhausted bool `json:"exhausted,omitempty"`
}

type FindSuccessorRequest struct {
	ID uint64 `json:"id"`
	// HopsLeft is the recursion budget remaining, carried across RPC
	// hops and decremented at each forward so the depth limit holds for
	// the whole chain, not just one node's local view.
	HopsLeft uint64 `json:"hops_left"`
}

type ClosestPrecedingFingerRequest struct {
	ID uint64 `json:"id"`
}

type NotifyRequest struct {
	Addr string `json:"addr"`
}

type GetRequest struct {
	Key string `json:"key"`
}

type GetResponseData struct {
	Data string `json:"data"`
}

type SetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type IDRequest struct {
	Offset uint64 `json:"offset"`
}

type IDResponseData struct {
	ID uint64 `json:"id"`
}

type PredecessorResponseData struct {
	// Addr is empty when the peer has no predecessor.
	Addr string `json:"addr"`
}
