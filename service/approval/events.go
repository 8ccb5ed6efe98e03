package approval

import (
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/service/advancer"
	"github.com/viant/approvo/service/aggregator"
	"github.com/viant/approvo/service/event"
	"github.com/viant/approvo/service/rollback"
)

func instanceContext(inst *instance.Instance, stepIndex int, nodeID, actor string) *event.Context {
	return &event.Context{
		InstanceID:   inst.ID,
		DefinitionID: inst.DefinitionID,
		StepIndex:    stepIndex,
		NodeID:       nodeID,
		Actor:        actor,
	}
}

func definitionName(inst *instance.Instance) string {
	if inst.Definition == nil {
		return inst.DefinitionID
	}
	return inst.Definition.Name
}

func recipients(groups ...[]string) []string {
	var ret []string
	seen := map[string]bool{}
	for _, group := range groups {
		for _, id := range group {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ret = append(ret, id)
		}
	}
	return ret
}

// transitionEvents records metrics for a transition and returns its notifications.
func (s *Service) transitionEvents(inst *instance.Instance, transition *advancer.Transition, actor string) []*event.Event {
	if transition == nil {
		return nil
	}
	var ret []*event.Event
	if step := transition.Activated; step != nil {
		ret = append(ret, event.NewEvent(event.TopicStepActivated,
			instanceContext(inst, step.Index, step.NodeID, actor),
			recipients(step.ApproverIDs(), step.CC),
			map[string]interface{}{
				"definition": definitionName(inst),
				"step":       step.Name,
				"policy":     string(step.Policy),
				"approvers":  step.ApproverIDs(),
			}))
	}
	if blocked := transition.Blocked; blocked != nil {
		approverType := flow.ApproverType("")
		if inst.Definition != nil {
			if node, ok := inst.Definition.Flow.Lookup(blocked.NodeID).(*flow.Approve); ok {
				approverType = node.ApproverType
			}
		}
		s.metrics.Blocked(approverType)
		ret = append(ret, event.NewEvent(event.TopicInstanceBlocked,
			instanceContext(inst, blocked.StepIndex, blocked.NodeID, actor),
			recipients([]string{inst.SubmittedBy}),
			map[string]interface{}{
				"definition": definitionName(inst),
				"reason":     blocked.Reason,
				"attempts":   blocked.Attempts,
			}))
	}
	if transition.Completed != "" {
		s.metrics.Completed(string(transition.Completed))
		var cc []string
		for _, step := range inst.Steps {
			cc = append(cc, step.CC...)
		}
		ret = append(ret, event.NewEvent(event.TopicInstanceTerminal,
			instanceContext(inst, inst.CurrentStep, "", actor),
			recipients([]string{inst.SubmittedBy}, cc),
			map[string]interface{}{
				"definition": definitionName(inst),
				"status":     string(transition.Completed),
			}))
	}
	return ret
}

func (s *Service) decisionEvent(inst *instance.Instance, outcome *aggregator.StepOutcome) *event.Event {
	return event.NewEvent(event.TopicDecisionRecorded,
		instanceContext(inst, outcome.StepIndex, outcome.NodeID, outcome.ApproverID),
		recipients([]string{inst.SubmittedBy}),
		map[string]interface{}{
			"definition": definitionName(inst),
			"decision":   string(outcome.Verdict),
			"stepStatus": string(outcome.StepStatus),
			"resolved":   outcome.Resolved,
		})
}

func rollbackEvent(result *rollback.Result, by string) *event.Event {
	owners := make([]string, 0, len(result.Reopened))
	tasks := make([]string, 0, len(result.Reopened))
	for _, reopened := range result.Reopened {
		owners = append(owners, reopened.Owner)
		tasks = append(tasks, reopened.TaskCode)
	}
	data := map[string]interface{}{
		"reopened": tasks,
		"current":  result.Current,
	}
	if result.Outcome != nil {
		data["outcome"] = result.Outcome.Code
		data["target"] = result.Outcome.RollbackToTaskCode
	}
	return event.NewEvent(event.TopicRollbackApplied,
		&event.Context{PipelineID: result.PipelineID, TaskCode: result.TaskCode, Actor: by},
		recipients(owners),
		data)
}
