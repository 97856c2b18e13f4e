package builtin

import (
	"context"
	"fmt"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
)

// CalculateTool evaluates an arithmetic expression over integers and floats.
func CalculateTool(clock Clock) domain.Executable {
	return domain.FuncTool{
		Definition: domain.Tool{
			Name:        "calculate",
			Description: "Evaluate an arithmetic expression (+ - * / // % ** and parentheses)",
			InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
				"expression": {Type: "string", Description: "The expression to evaluate, e.g. (2 + 3) * 4"},
			}, "expression"),
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			expression, err := stringArg(args, "expression")
			if err != nil {
				return nil, err
			}
			result, err := evaluate(expression)
			if err != nil {
				return nil, fmt.Errorf("calculation failed: %w", err)
			}
			return map[string]any{
				"operation":   "calculate",
				"expression":  expression,
				"result":      result.Value(),
				"result_type": result.TypeName(),
				"timestamp":   clock.isoNow(),
			}, nil
		},
	}
}
