package builtin

import (
	"context"
	"strconv"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
)

// isoLayout renders local time without a zone, microsecond precision.
const isoLayout = "2006-01-02T15:04:05.000000"

// Clock supplies the current time. The zero value uses time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

func (c Clock) isoNow() string {
	return c.now().Format(isoLayout)
}

// CurrentTimeTool reports the current time in the requested format:
// "iso", "timestamp" or any strftime pattern.
func CurrentTimeTool(clock Clock) domain.Executable {
	return domain.FuncTool{
		Definition: domain.Tool{
			Name:        "get_current_time",
			Description: "Get the current system time",
			InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
				"format": {
					Type:        "string",
					Description: `Time format: "iso", "timestamp" or a strftime pattern such as "%Y-%m-%d %H:%M:%S"`,
					Default:     "iso",
				},
			}),
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			format := "iso"
			if _, ok := args["format"]; ok {
				var err error
				if format, err = stringArg(args, "format"); err != nil {
					return nil, err
				}
			}

			now := clock.now()
			stamp := float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)

			var formatted string
			switch format {
			case "iso":
				formatted = now.Format(isoLayout)
			case "timestamp":
				formatted = strconv.FormatFloat(stamp, 'f', -1, 64)
			default:
				formatted = strftime.Format(format, now)
			}

			return map[string]any{
				"operation":      "get_current_time",
				"format":         format,
				"formatted_time": formatted,
				"timestamp":      stamp,
				"iso_format":     now.Format(isoLayout),
				"components": map[string]int{
					"year":   now.Year(),
					"month":  int(now.Month()),
					"day":    now.Day(),
					"hour":   now.Hour(),
					"minute": now.Minute(),
					"second": now.Second(),
				},
			}, nil
		},
	}
}
