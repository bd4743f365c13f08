package engine

import "github.com/bingo1234588/modelbox/types"

// RunType distinguishes the scheduler's invocation reasons for Node.Run
// (spec.md §4.1/4.2). The core does not interpret it beyond passing it
// through; the out-of-scope worker-pool scheduler defines its meaning.
type RunType int

// Device is the out-of-scope device/resource abstraction, named here
// only as the contract virtual nodes reach through (spec.md §1).
type Device interface {
	Name() string
	ID() string
}

// DeviceManager creates Device handles. It is an external collaborator
// (spec.md §1); the core only calls it and logs when it is nil or
// fails, never treats either as fatal to Run.
type DeviceManager interface {
	CreateDevice(name, id string) (Device, error)
}

// Capability is the common surface every node kind implements,
// matching the "polymorphism over node kinds" design note (spec.md
// §9): the flowunit capabilities (package flowunit) implement it. The
// virtual node kinds do not; they are driven through Node's InitAs*/
// Run* methods, and structural behavior lives in the checker's tables
// rather than in overridden methods here.
type Capability interface {
	Init(inputNames, outputNames []string, config types.Configuration) types.Status
	Open() types.Status
	Run(runType RunType) types.Status
	GetDevice() Device
}

// NodeBase is the common state every node kind embeds: its ports, its
// declared priority/queue size, and (once GraphChecker.Check has run)
// its match node. It is intentionally a plain struct, not an interface
// hierarchy — see the "polymorphism over node kinds" design note.
type NodeBase struct {
	Name string
	Kind types.NodeKind
	Desc *types.FlowUnitDesc // nil for virtual nodes

	InputPorts  map[string]*Port
	OutputPorts map[string]*Port

	Priority  int
	QueueSize int64

	DeviceName string
	DeviceID   string
	DeviceMgr  DeviceManager

	matchNode *Node

	// externPorts and matchMgr back the InputVirtual/OutputVirtual
	// behaviors (virtual_node.go); nil for ordinary flowunit nodes.
	externPorts map[string]*Port
	matchMgr    *InputMatchStreamManager
	unmatch     *unmatchState
}

// Init wires up InputPorts/OutputPorts from the declared port name
// sets, mirroring NodeBase::Init in virtual_node.cc.
func (b *NodeBase) Init(inputNames, outputNames []string, config types.Configuration) types.Status {
	if b.QueueSize == 0 {
		// unset: unbounded, the same default as types.Config.WithDefaults
		b.QueueSize = -1
	}
	qSize := config.GetInt64("queue_size", b.QueueSize)
	b.InputPorts = make(map[string]*Port, len(inputNames))
	for _, n := range inputNames {
		b.InputPorts[n] = NewPort(n, qSize, b.Priority)
	}
	b.OutputPorts = make(map[string]*Port, len(outputNames))
	for _, n := range outputNames {
		b.OutputPorts[n] = NewPort(n, qSize, b.Priority)
	}
	return types.StatusOK
}

// GetInputNum returns the declared input port count.
func (b *NodeBase) GetInputNum() int { return len(b.InputPorts) }

// GetInputNames returns the declared input port names.
func (b *NodeBase) GetInputNames() []string {
	names := make([]string, 0, len(b.InputPorts))
	for n := range b.InputPorts {
		names = append(names, n)
	}
	return names
}

// GetPriority returns the node's scheduling priority.
func (b *NodeBase) GetPriority() int { return b.Priority }

// GetDevice resolves this node's Device through DeviceMgr. A nil
// manager or a failed lookup is logged through logger (when non-nil)
// and yields a nil Device — observable but not fatal (spec.md §4.1).
func (b *NodeBase) GetDevice(logger types.Logger) Device {
	if b.DeviceMgr == nil {
		if logger != nil {
			logger.Printf("device_mgr is nil for node %s", b.Name)
		}
		return nil
	}
	dev, err := b.DeviceMgr.CreateDevice(b.DeviceName, b.DeviceID)
	if err != nil || dev == nil {
		if logger != nil {
			logger.Printf("device is nil for node %s: device_name=%s device_id=%s err=%v", b.Name, b.DeviceName, b.DeviceID, err)
		}
		return nil
	}
	return dev
}

// SetMatchNode records this node's computed match node (spec.md §4.5),
// assigned once by GraphChecker.Check.
func (b *NodeBase) SetMatchNode(n *Node) { b.matchNode = n }

// GetMatchNode returns the upstream structural opener whose sub-stream
// this node currently lives inside, or nil at the top level.
func (b *NodeBase) GetMatchNode() *Node { return b.matchNode }

// Node is a structural/runtime flowunit node: a NodeBase plus whatever
// graph-position bookkeeping GraphChecker needs (hierarchy frames).
// Virtual nodes (Input/Output/OutputUnmatch) are Nodes too, with Desc
// left nil; their Run behavior is fixed by the engine, not
// caller-supplied, and lives in virtual_node.go and unmatch_cache.go.
type Node struct {
	NodeBase
}

// NewNode builds an un-initialized Node for desc, named name.
func NewNode(name string, desc *types.FlowUnitDesc) *Node {
	return &Node{NodeBase: NodeBase{Name: name, Desc: desc}}
}

func (n *Node) IsConditionOpener() bool {
	return n.Desc != nil && n.Desc.IsConditionOpener()
}
func (n *Node) IsExpand() bool  { return n.Desc != nil && n.Desc.IsExpand() }
func (n *Node) IsCollapse() bool { return n.Desc != nil && n.Desc.IsCollapse() }
func (n *Node) IsLoop() bool    { return n.Desc != nil && n.Desc.IsLoop() }

// IsOpener reports whether n introduces a new hierarchy frame
// (condition, expand, or loop — spec.md §4.5/§4.6).
func (n *Node) IsOpener() bool { return n.IsConditionOpener() || n.IsExpand() || n.IsLoop() }
