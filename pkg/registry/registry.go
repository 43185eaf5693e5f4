package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// FindByTaskType returns the registered activity for a task type, or nil.
func (r *ActivityRegistry) FindByTaskType(taskType string) *Activity {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i]
		}
	}
	return nil
}

// ValidateJobInput checks a job's raw variable payload against the input
// schema registered for its task type. Unknown task types pass through, so a
// worker whose registry entry lags behind its deployment keeps processing.
func (r *ActivityRegistry) ValidateJobInput(taskType, variables string) error {
	if r == nil {
		return nil
	}
	activity := r.FindByTaskType(taskType)
	if activity == nil {
		return nil
	}
	return activity.ValidateJobInput(variables)
}

// ValidateJobInput parses the raw variable payload and validates it against
// the activity's input schema.
func (a *Activity) ValidateJobInput(variables string) error {
	if len(a.InputSchema) == 0 {
		return nil
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &parsed); err != nil {
		return fmt.Errorf("parse variables for %s: %w", a.TaskType, err)
	}
	return a.ValidateInput(parsed)
}

// ValidateInput checks job variables against the activity's input schema.
// Activities without a schema accept anything.
func (a *Activity) ValidateInput(variables map[string]interface{}) error {
	if len(a.InputSchema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(a.InputSchema)
	documentLoader := gojsonschema.NewGoLoader(variables)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate input for %s: %w", a.TaskType, err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("input for %s invalid: %s", a.TaskType, errs[0].String())
		}
		return fmt.Errorf("input for %s invalid", a.TaskType)
	}
	return nil
}
