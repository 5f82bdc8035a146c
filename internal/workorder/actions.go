package workorder

import "github.com/pitabwire/workdesk/model"

// Actions lists the controls to offer on w for this session. They are
// hints; the API decides whether a call is allowed.
func (e *Engine) Actions(w *model.WorkOrder) []model.Action {
	return actionsFor(e.caps, w)
}

func actionsFor(caps model.CapabilitySet, w *model.WorkOrder) []model.Action {
	actions := []model.Action{}

	if caps.Has(model.CapStatusProgress) {
		switch w.Status {
		case model.StatusAssigned:
			actions = append(actions, model.Action{Kind: model.ActionStart, Target: model.StatusInProgress})
		case model.StatusInProgress:
			actions = append(actions, model.Action{Kind: model.ActionFinish, Target: model.StatusDone})
		}
	}

	if caps.Has(model.CapStatusSet) {
		options := make([]model.Status, 0, len(model.StatusCardOptions))
		for _, s := range model.StatusCardOptions {
			if s != w.Status {
				options = append(options, s)
			}
		}
		actions = append(actions, model.Action{Kind: model.ActionSetStatus, Options: options})
	}

	if caps.Has(model.CapWorkOrdersEdit) {
		actions = append(actions, model.Action{Kind: model.ActionEdit})
	}
	if caps.Has(model.CapWorkOrdersDelete) {
		a := model.Action{Kind: model.ActionDelete}
		if w.HasParts() {
			a.Disabled = true
			a.Reason = model.ReasonHasDependentParts
		}
		actions = append(actions, a)
	}
	if caps.Has(model.CapWorkOrdersBoard) {
		actions = append(actions, model.Action{Kind: model.ActionBoard})
	}
	return actions
}
