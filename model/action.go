package model

// ActionKind names a control offered on one work order.
type ActionKind string

const (
	ActionStart     ActionKind = "start"
	ActionFinish    ActionKind = "finish"
	ActionEdit      ActionKind = "edit"
	ActionDelete    ActionKind = "delete"
	ActionBoard     ActionKind = "board"
	ActionSetStatus ActionKind = "set_status"
)

// StatusCardOptions are the statuses offered by the free status-card
// control. IN_PROGRESS is reached through Start only.
var StatusCardOptions = []Status{StatusOpen, StatusAssigned, StatusDone}

// Action is an affordance hint. Target is the status Start and Finish move
// to; Options lists the choices of set_status. Disabled actions are still
// shown, with the reason code.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Target   Status     `json:"target,omitempty"`
	Options  []Status   `json:"options,omitempty"`
	Disabled bool       `json:"disabled,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}
