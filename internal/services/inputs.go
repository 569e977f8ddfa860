package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/asterlab/mission-gateway/internal/clients/compute"
	types "github.com/asterlab/mission-gateway/internal/domain"
	"github.com/asterlab/mission-gateway/internal/platform/apierr"
	"github.com/asterlab/mission-gateway/internal/platform/logger"
)

// Reserved parameter destination: the job spec wants the submitting
// principal's username rather than a caller-supplied value.
const destinationContext = "context"

type InputService interface {
	// Validate coerces caller inputs against the job spec and returns the
	// parameter map the backend expects. Declared defaults fill absent
	// inputs; undeclared inputs fail unless the spec allows passthrough.
	Validate(spec *compute.JobSpec, inputs map[string]interface{}, principal *types.Principal) (map[string]interface{}, error)
}

type inputService struct {
	log *logger.Logger
}

func NewInputService(baseLog *logger.Logger) InputService {
	return &inputService{log: baseLog.With("service", "InputService")}
}

func (s *inputService) Validate(spec *compute.JobSpec, inputs map[string]interface{}, principal *types.Principal) (map[string]interface{}, error) {
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	params := make(map[string]interface{}, len(spec.Params))
	declared := make(map[string]bool, len(spec.Params))

	for _, def := range spec.Params {
		declared[def.Name] = true

		if def.Destination == destinationContext {
			if def.Name == "username" {
				params[def.Name] = principal.Username
			}
			continue
		}

		raw, present := inputs[def.Name]
		if !present {
			if def.HasDefault() {
				params[def.Name] = def.Default
				continue
			}
			return nil, apierr.InvalidRequestf("missing required input %q", def.Name)
		}

		coerced, err := coerce(def, raw)
		if err != nil {
			return nil, err
		}
		params[def.Name] = coerced
	}

	for name := range inputs {
		if declared[name] {
			continue
		}
		if spec.AllowPassthrough {
			params[name] = inputs[name]
			continue
		}
		return nil, apierr.InvalidRequestf("unknown input %q for job type %q", name, spec.Type)
	}

	return params, nil
}

func coerce(def compute.ParamDef, raw interface{}) (interface{}, error) {
	switch def.Type {
	case "string", "positional", "":
		return coerceString(def.Name, def.Type, raw)
	case "download":
		s, err := coerceString(def.Name, def.Type, raw)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(s, "://") {
			return nil, typeMismatch(def.Name, "download URL", raw)
		}
		return s, nil
	case "number":
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return nil, typeMismatch(def.Name, "number", raw)
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, typeMismatch(def.Name, "number", raw)
			}
			return f, nil
		}
		return nil, typeMismatch(def.Name, "number", raw)
	case "boolean":
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, typeMismatch(def.Name, "boolean", raw)
			}
			return b, nil
		}
		return nil, typeMismatch(def.Name, "boolean", raw)
	case "config":
		switch v := raw.(type) {
		case map[string]interface{}:
			return v, nil
		case string:
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(v), &m); err != nil {
				return nil, typeMismatch(def.Name, "config object", raw)
			}
			return m, nil
		}
		return nil, typeMismatch(def.Name, "config object", raw)
	default:
		// Backend introduced a parameter type this gateway does not know;
		// pass the value through untouched rather than reject a valid job.
		return raw, nil
	}
}

func coerceString(name, declared string, raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	if declared == "" {
		declared = "string"
	}
	return "", typeMismatch(name, declared, raw)
}

func typeMismatch(name, expected string, got interface{}) error {
	return apierr.InvalidRequestf("input %q: expected %s, got %s", name, expected, fmt.Sprintf("%T", got))
}
