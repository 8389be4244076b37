package wsrpc

// Wire messages exchanged with the target's query bridge. One request
// per frame, one correlated response per request; the bridge may
// interleave unsolicited event frames, which carry no matching id and
// are skipped.

const (
	methodEvaluate = "evaluate"
	methodDispose  = "dispose"
	methodWaitFor  = "waitFor"
)

// subtypeNode marks a remote object the target classified as a DOM
// element.
const subtypeNode = "node"

type request struct {
	ID     string `json:"id"`
	Method string `json:"method"`

	// Recv is the handle id the call is addressed to; empty means the
	// document root.
	Recv string `json:"recv,omitempty"`

	// Function and Args carry an evaluate call's page function.
	Function string `json:"function,omitempty"`
	Args     []any  `json:"args,omitempty"`

	Wait *waitParams `json:"wait,omitempty"`
}

type waitParams struct {
	Predicate string `json:"predicate"`
	Selector  string `json:"selector"`
	Visible   bool   `json:"visible,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	TimeoutMs int64  `json:"timeoutMs,omitempty"`
	Polling   string `json:"polling,omitempty"`
}

type response struct {
	ID     string        `json:"id"`
	Result *remoteObject `json:"result,omitempty"`
	Error  *wireError    `json:"error,omitempty"`
}

type remoteObject struct {
	HandleID string `json:"handleId"`
	Subtype  string `json:"subtype,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
