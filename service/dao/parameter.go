package dao

// Well known list parameter names.
const (
	ParamStatus     = "Status"
	ParamApprover   = "Approver"
	ParamDefinition = "Definition"
	ParamSubmitter  = "Submitter"
)

type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Lookup returns the first parameter with name.
func Lookup(name string, parameters []*Parameter) *Parameter {
	for _, parameter := range parameters {
		if parameter != nil && parameter.Name == name {
			return parameter
		}
	}
	return nil
}
