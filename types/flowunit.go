package types

// FlowType distinguishes a one-shot NORMAL flowunit from a STREAM
// flowunit that may emit any number of buffers per sub-stream.
type FlowType int

const (
	NORMAL FlowType = iota
	STREAM
)

func (f FlowType) String() string {
	if f == STREAM {
		return "STREAM"
	}
	return "NORMAL"
}

// ConditionType marks a flowunit as a structural condition (IF_ELSE)
// opener, per spec.md §4.6 rule 3.
type ConditionType int

const (
	ConditionNone ConditionType = iota
	IfElse
)

// OutputType marks a flowunit as a structural expand/collapse operator,
// per spec.md §4.6 rule 4.
type OutputType int

const (
	OutputNormal OutputType = iota
	Expand
	Collapse
)

// LoopType marks a flowunit as a loop operator, per spec.md §4.6 rule 5.
type LoopType int

const (
	LoopNone LoopType = iota
	Loop
)

// FlowUnitDesc is the caller-supplied metadata for one flowunit kind,
// as surfaced by the (out-of-scope) plugin loader. The checker and the
// match-node assignment dispatch on these fields exclusively — see
// graph_checker_test.cc's GenerateFlowunitDesc calls for the shape this
// mirrors.
type FlowUnitDesc struct {
	Name             string
	InputPorts       []string
	OutputPorts      []string
	FlowType         FlowType
	ConditionType    ConditionType
	OutputType       OutputType
	LoopType         LoopType
	StreamSameCount  bool
}

// IsConditionOpener reports whether this flowunit kind introduces a
// condition branch (§4.6 rule 3).
func (d *FlowUnitDesc) IsConditionOpener() bool {
	return d.ConditionType == IfElse
}

// IsExpand reports whether this flowunit kind is an expand opener.
func (d *FlowUnitDesc) IsExpand() bool {
	return d.OutputType == Expand
}

// IsCollapse reports whether this flowunit kind is a collapse closer.
func (d *FlowUnitDesc) IsCollapse() bool {
	return d.OutputType == Collapse
}

// IsLoop reports whether this flowunit kind permits back-edges to its
// own input (§4.6 rule 5).
func (d *FlowUnitDesc) IsLoop() bool {
	return d.LoopType == Loop
}
