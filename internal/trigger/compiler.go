// Package trigger compiles high-level scaling signals into the trigger
// blocks the event-driven scaler expects.
package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kscale-dev/kscale/internal/models"
)

// Default thresholds applied when a signal source omits its own.
const (
	defaultCPUValue       = "50"
	defaultMemoryValue    = "80"
	defaultLagThreshold   = "10"
	defaultRedisThreshold = "10"
	defaultQueueLength    = "10"
)

// compileOrder fixes the output position of each modeled kind. Generic raw
// triggers follow, in input order. The sequence is an observable contract of
// the scaler manifest.
var compileOrder = []string{
	models.TriggerCPU,
	models.TriggerMemory,
	models.TriggerCustomQuery,
	models.TriggerQueueLag,
	models.TriggerStream,
	models.TriggerBrokerQueue,
}

// Compile builds the trigger list for one request. A spec missing a required
// parameter is dropped and reported; compilation continues with the rest.
func Compile(specs []models.TriggerSpec) ([]models.Trigger, []models.Problem) {
	var (
		triggers []models.Trigger
		problems []models.Problem
	)

	for _, kind := range compileOrder {
		for _, spec := range specs {
			if spec.Kind != kind || len(spec.Raw) > 0 {
				continue
			}
			compiled, problem := compileKind(spec)
			if problem != nil {
				problems = append(problems, *problem)
				continue
			}
			triggers = append(triggers, compiled)
		}
	}

	for _, spec := range specs {
		switch {
		case len(spec.Raw) > 0:
			compiled, problem := compileRaw(spec.Raw)
			if problem != nil {
				problems = append(problems, *problem)
				continue
			}
			triggers = append(triggers, compiled)
		case !modeledKind(spec.Kind):
			problems = append(problems, models.Problem{
				Source: "trigger",
				Reason: fmt.Sprintf("unknown trigger kind %q, dropped", spec.Kind),
			})
		}
	}

	return triggers, problems
}

func modeledKind(kind string) bool {
	for _, k := range compileOrder {
		if k == kind {
			return true
		}
	}
	return false
}

func compileKind(spec models.TriggerSpec) (models.Trigger, *models.Problem) {
	switch spec.Kind {
	case models.TriggerCPU:
		return utilization("cpu", spec.Params, defaultCPUValue), nil
	case models.TriggerMemory:
		return utilization("memory", spec.Params, defaultMemoryValue), nil
	case models.TriggerCustomQuery:
		return compilePrometheus(spec.Params)
	case models.TriggerQueueLag:
		return compileKafka(spec.Params)
	case models.TriggerStream:
		return compileRedis(spec.Params)
	case models.TriggerBrokerQueue:
		return compileRabbitMQ(spec.Params)
	}
	return models.Trigger{}, &models.Problem{
		Source: "trigger",
		Reason: fmt.Sprintf("unknown trigger kind %q, dropped", spec.Kind),
	}
}

func utilization(triggerType string, params map[string]string, defaultValue string) models.Trigger {
	value := params["value"]
	if value == "" {
		value = defaultValue
	}
	return models.Trigger{
		Type: triggerType,
		Metadata: map[string]string{
			"type":  "Utilization",
			"value": value,
		},
	}
}

func compilePrometheus(params map[string]string) (models.Trigger, *models.Problem) {
	if problem := missing("custom-query", params, "serverAddress", "query"); problem != nil {
		return models.Trigger{}, problem
	}
	metadata := map[string]string{
		"serverAddress": params["serverAddress"],
		"metricName":    "prometheus-metric",
		"query":         params["query"],
	}
	if threshold := params["threshold"]; threshold != "" {
		metadata["threshold"] = threshold
	}
	return models.Trigger{Type: "prometheus", Metadata: metadata}, nil
}

func compileKafka(params map[string]string) (models.Trigger, *models.Problem) {
	if problem := missing("queue-lag", params, "bootstrapServers", "consumerGroup", "topic"); problem != nil {
		return models.Trigger{}, problem
	}
	lag := params["lagThreshold"]
	if lag == "" {
		lag = defaultLagThreshold
	}
	return models.Trigger{
		Type: "kafka",
		Metadata: map[string]string{
			"bootstrapServers": params["bootstrapServers"],
			"consumerGroup":    params["consumerGroup"],
			"topic":            params["topic"],
			"lagThreshold":     lag,
		},
	}, nil
}

func compileRedis(params map[string]string) (models.Trigger, *models.Problem) {
	if problem := missing("stream-backlog", params, "address"); problem != nil {
		return models.Trigger{}, problem
	}
	threshold := params["threshold"]
	if threshold == "" {
		threshold = defaultRedisThreshold
	}
	metadata := map[string]string{
		"address":   params["address"],
		"threshold": threshold,
	}
	// A list target wins over a stream target when both are present.
	if listName := params["listName"]; listName != "" {
		metadata["listName"] = listName
	} else if streamName := params["streamName"]; streamName != "" {
		metadata["streamName"] = streamName
	}
	return models.Trigger{Type: "redis", Metadata: metadata}, nil
}

func compileRabbitMQ(params map[string]string) (models.Trigger, *models.Problem) {
	if problem := missing("message-broker-queue", params, "host", "queueName"); problem != nil {
		return models.Trigger{}, problem
	}
	length := params["queueLength"]
	if length == "" {
		length = defaultQueueLength
	}
	return models.Trigger{
		Type: "rabbitmq",
		Metadata: map[string]string{
			"host":        params["host"],
			"queueName":   params["queueName"],
			"queueLength": length,
		},
	}, nil
}

// compileRaw parses a generic trigger description. Metadata values are
// stringified so the output always carries a string map.
func compileRaw(raw json.RawMessage) (models.Trigger, *models.Problem) {
	var parsed struct {
		Type     string         `json:"type"`
		Metadata map[string]any `json:"metadata"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return models.Trigger{}, &models.Problem{
			Source: "generic trigger",
			Reason: fmt.Sprintf("invalid JSON, dropped: %v", err),
		}
	}
	if parsed.Type == "" {
		return models.Trigger{}, &models.Problem{
			Source: "generic trigger",
			Reason: `missing "type" field, dropped`,
		}
	}

	metadata := make(map[string]string, len(parsed.Metadata))
	for key, value := range parsed.Metadata {
		switch v := value.(type) {
		case string:
			metadata[key] = v
		case json.Number:
			metadata[key] = v.String()
		case bool:
			metadata[key] = strconv.FormatBool(v)
		default:
			return models.Trigger{}, &models.Problem{
				Source: "generic trigger",
				Reason: fmt.Sprintf("metadata key %q is not a scalar value, dropped", key),
			}
		}
	}
	return models.Trigger{Type: parsed.Type, Metadata: metadata}, nil
}

func missing(kind string, params map[string]string, required ...string) *models.Problem {
	for _, key := range required {
		if params[key] == "" {
			return &models.Problem{
				Source: kind + " trigger",
				Reason: fmt.Sprintf("missing required parameter %q, dropped", key),
			}
		}
	}
	return nil
}
