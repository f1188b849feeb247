package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ProductionLogger provides layered observability for runner operations:
// console output always works, metrics emission layers in once a
// telemetry registry is available (see SetMetricsRegistry), and trace
// correlation layers in on top of that.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger for the given service name.
// format is "json" or "text"; level is "debug", "info", "warn", or "error".
func NewProductionLogger(serviceName, level, format string) *ProductionLogger {
	if format == "" {
		format = "text"
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		}
	}
	if level == "" {
		level = "info"
	}
	logger := &ProductionLogger{
		level:       strings.ToLower(level),
		debug:       strings.ToLower(level) == "debug" || os.Getenv("RUNNER_DEBUG") == "true",
		serviceName: serviceName,
		format:      format,
		output:      os.Stderr,
	}
	trackLogger(logger)
	return logger
}

// WithComponent returns a logger that tags every entry with component,
// e.g. "runner/executor" or "runner/planner".
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

// EnableMetrics is called by telemetry once a metrics registry is available.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)
	component := p.component
	if component == "" {
		component = "runner"
	}

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		var fieldStr strings.Builder
		for k, v := range fields {
			fieldStr.WriteString(fmt.Sprintf(" %s=%v", k, v))
		}
		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s\n", timestamp, level, p.serviceName, component, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(ctx, level, fields)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(ctx context.Context, level string, fields map[string]interface{}) {
	labels := []string{"level", level, "service", p.serviceName}
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "agent_name":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}
	registry := GetGlobalMetricsRegistry()
	if registry == nil {
		return
	}
	if ctx != nil {
		registry.EmitWithContext(ctx, "runner.log.events", 1.0, labels...)
	} else {
		registry.Counter("runner.log.events", labels...)
	}
}
