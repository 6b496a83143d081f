package engine

// Action is a learner intent sent by the presentation layer.
type Action string

const (
	ActionSelect   Action = "select"
	ActionCheck    Action = "check"
	ActionContinue Action = "continue"
	ActionAdvance  Action = "advance"
	ActionRetreat  Action = "retreat"
	ActionSubmit   Action = "submit"
)

// Intent is one learner action. Label is only read by ActionSelect.
type Intent struct {
	Action Action `json:"action"`
	Label  string `json:"label,omitempty"`
}

// Apply routes an intent to the matching transition.
func (s *Session) Apply(in Intent) error {
	switch in.Action {
	case ActionSelect:
		return s.Toggle(in.Label)
	case ActionCheck:
		return s.Check()
	case ActionContinue:
		return s.Continue()
	case ActionAdvance:
		return s.Advance()
	case ActionRetreat:
		return s.Retreat()
	case ActionSubmit:
		return s.Submit()
	default:
		return reject("unknown action %q", in.Action)
	}
}
