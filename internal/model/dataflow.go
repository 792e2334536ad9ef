package model

// DataRole classifies how an identifier participates in data movement.
type DataRole string

const (
	RoleSource      DataRole = "SOURCE"
	RoleSink        DataRole = "SINK"
	RoleTransformer DataRole = "TRANSFORMER"
	RoleStore       DataRole = "STORE"
)

// DataNode is an identifier observed acting as a data endpoint or operator.
type DataNode struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Line       int      `json:"line"`
	Role       DataRole `json:"role"`
	Confidence float64  `json:"confidence"`
}

// DataFlow is a directed edge between two data nodes. Async marks flows that
// cross an asynchronous boundary; Conditional marks flows guarded by control
// flow.
type DataFlow struct {
	ID          string  `json:"id"`
	FromID      string  `json:"fromId"`
	ToID        string  `json:"toId"`
	Async       bool    `json:"async,omitempty"`
	Conditional bool    `json:"conditional,omitempty"`
	Confidence  float64 `json:"confidence"`
	ContentHash string  `json:"contentHash,omitempty"`
}

// DataFlowPath is an ordered source-to-sink chain of data node IDs.
type DataFlowPath struct {
	ID         string   `json:"id"`
	NodeIDs    []string `json:"nodeIds"`
	Confidence float64  `json:"confidence"`
}

// DataFlowGraph aggregates everything the data-flow analysis produced.
type DataFlowGraph struct {
	Nodes map[string]*DataNode `json:"nodes,omitempty"`
	Flows []*DataFlow          `json:"flows,omitempty"`
	Paths []*DataFlowPath      `json:"paths,omitempty"`
}
