package enrichment

import (
	"strings"

	"github.com/octobees/enrichment-pipeline/internal/entity"
)

const defaultConcatSeparator = " "

// ApplyTransformOp returns a copy of fields with the op's output field written.
//
// Executors are best-effort: missing inputs read as empty strings and never fail.
func ApplyTransformOp(fields Fields, op entity.TransformOp) Fields {
	out := fields.Clone()
	out[op.Output] = evalTransformOp(fields, op)
	return out
}

func evalTransformOp(fields Fields, op entity.TransformOp) string {
	switch op.Kind {
	case entity.TransformTemplate:
		return Interpolate(op.Template, fields, false)
	case entity.TransformConcat:
		sep := defaultConcatSeparator
		if op.Separator != nil {
			sep = *op.Separator
		}
		parts := make([]string, len(op.Inputs))
		for i, name := range op.Inputs {
			parts[i] = fields[name]
		}
		return strings.Join(parts, sep)
	case entity.TransformLowercase:
		return strings.ToLower(fields[op.Input])
	case entity.TransformUppercase:
		return strings.ToUpper(fields[op.Input])
	case entity.TransformStrip:
		return strings.TrimSpace(fields[op.Input])
	default:
		return ""
	}
}

// ApplyTransform runs the operations in order. Each operation sees the output of the
// previous one.
func ApplyTransform(fields Fields, cfg entity.TransformConfig) Fields {
	out := fields
	for _, op := range cfg.Operations {
		out = ApplyTransformOp(out, op)
	}
	return out
}

// ApplyFieldMap copies each mapping's From value into To. Missing sources are skipped.
func ApplyFieldMap(fields Fields, cfg entity.FieldMapConfig) Fields {
	out := fields.Clone()
	for _, m := range cfg.Mappings {
		if value, ok := out[m.From]; ok {
			out[m.To] = value
		}
	}
	return out
}

// ExecuteLocal runs one local step. Remote steps pass fields through untouched.
func ExecuteLocal(fields Fields, step entity.Step) Fields {
	switch step.Type {
	case entity.StepTransform:
		if step.Transform == nil {
			return fields
		}
		return ApplyTransform(fields, *step.Transform)
	case entity.StepFieldMap:
		if step.FieldMap == nil {
			return fields
		}
		return ApplyFieldMap(fields, *step.FieldMap)
	default:
		return fields
	}
}
