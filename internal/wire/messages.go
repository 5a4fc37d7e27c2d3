package wire

// Messages exchanged over the Endpoint RPC surface. These are plain
// structs, not protoc-generated types — the custom MsgPack
// codec registered in codec.go marshals them directly, the same way a
// generated .pb.go would if we were using the protobuf codec instead.

// Empty carries no fields; used for calls with no arguments.
type Empty struct{}

// MethodListResp is the response to ListMethods.
type MethodListResp struct {
	Methods []string `codec:"methods"`
}

// PriorityReq carries a task priority for EstWaitTime.
type PriorityReq struct {
	Priority float64 `codec:"priority"`
}

// LoadResp carries a single load scalar (lower is less loaded).
type LoadResp struct {
	Load float64 `codec:"load"`
}

// TaskMsg is the wire form of types.Task.
type TaskMsg struct {
	Name     string   `codec:"name"`
	Priority float64  `codec:"priority"`
	Payload  Envelope `codec:"payload"`
}

// SubmitReq carries a task plus forwarded extra arguments.
type SubmitReq struct {
	Task  TaskMsg    `codec:"task"`
	Extra []Envelope `codec:"extra,omitempty"`
}

// SubmitResp returns the server-assigned task id for the new handle.
type SubmitResp struct {
	TaskID string `codec:"task_id"`
}

// HandleRef identifies one previously submitted task.
type HandleRef struct {
	TaskID string `codec:"task_id"`
}

// StatusResp is the wire form of types.StatusRecord.
type StatusResp struct {
	Mode      string   `codec:"mode"`
	StartTime int64    `codec:"start_time,omitempty"` // unix nanos, 0 = absent
	HasResult bool     `codec:"has_result"`
	Result    Envelope `codec:"result,omitempty"`
}

// QueueDumpResp carries a human-readable queue dump.
type QueueDumpResp struct {
	Dump string `codec:"dump"`
}
