package approval

import (
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/runtime/pipeline"
	"github.com/viant/approvo/service/dao"
	"github.com/viant/approvo/service/dao/criteria"
)

// InstanceKey returns the storage key of an instance.
func InstanceKey(i *instance.Instance) string { return i.ID }

// InstanceFilter applies Status, Approver, Definition and Submitter list
// parameters. Approver matches users that may decide on the active step now.
func InstanceFilter(i *instance.Instance, parameters []*dao.Parameter) bool {
	return criteria.Match(func(name string) []string {
		switch name {
		case dao.ParamStatus:
			return []string{string(i.Status)}
		case dao.ParamDefinition:
			return []string{i.DefinitionID}
		case dao.ParamSubmitter:
			return []string{i.SubmittedBy}
		case dao.ParamApprover:
			ret := []string{}
			if !i.IsPending() {
				return ret
			}
			if step := i.ActiveStep(); step != nil {
				for _, id := range step.ApproverIDs() {
					if step.Eligible(id) {
						ret = append(ret, id)
					}
				}
			}
			return ret
		}
		return nil
	}, parameters)
}

// InstanceClone copies an instance crossing a memory store boundary.
func InstanceClone(i *instance.Instance) *instance.Instance { return i.Clone() }

// PipelineKey returns the storage key of a pipeline.
func PipelineKey(p *pipeline.Pipeline) string { return p.ID }

// PipelineFilter applies the Status list parameter.
func PipelineFilter(p *pipeline.Pipeline, parameters []*dao.Parameter) bool {
	return criteria.FilterByState(string(p.Status), parameters)
}

// PipelineClone copies a pipeline crossing a memory store boundary.
func PipelineClone(p *pipeline.Pipeline) *pipeline.Pipeline { return p.Clone() }

// TemplateKey returns the storage key of a template.
func TemplateKey(t *pipeline.Template) string { return t.ID }

// TemplateClone copies a template crossing a memory store boundary.
func TemplateClone(t *pipeline.Template) *pipeline.Template { return t.Clone() }
