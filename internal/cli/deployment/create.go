package deployment

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kscale-dev/kscale/internal/cli/common"
	"github.com/kscale-dev/kscale/internal/deploy"
	"github.com/kscale-dev/kscale/internal/models"
	cliconfig "github.com/kscale-dev/kscale/pkg/cli/config"
	"github.com/kscale-dev/kscale/pkg/printer"
)

var (
	createName     string
	createImage    string
	createReplicas int32
	createPorts    []int32
	createEnv      []string
	createLabels   []string

	createCPURequest    string
	createCPULimit      string
	createMemoryRequest string
	createMemoryLimit   string

	createServiceType string

	createLivenessProbe  string
	createReadinessProbe string
	createStartupProbe   string

	createEnableAutoscaling bool
	createMinReplicas       int32
	createMaxReplicas       int32
	createCPUTarget         int32
	createMemoryTarget      int32

	createEnableKEDA bool

	createKedaCPUTrigger     bool
	createKedaCPUThreshold   int32
	createKedaMemoryTrigger  bool
	createKedaMemThreshold   int32
	createKedaPromTrigger    bool
	createKedaPromServer     string
	createKedaPromQuery      string
	createKedaPromThreshold  float64
	createKedaKafkaTrigger   bool
	createKedaKafkaServers   string
	createKedaKafkaGroup     string
	createKedaKafkaTopic     string
	createKedaKafkaLag       int32
	createKedaRedisTrigger   bool
	createKedaRedisAddress   string
	createKedaRedisListName  string
	createKedaRedisStream    string
	createKedaRedisThreshold int32
	createKedaRabbitTrigger  bool
	createKedaRabbitHost     string
	createKedaRabbitQueue    string
	createKedaRabbitLength   int32
	createKedaGeneric        []string
)

var CreateCmd = &cobra.Command{
	Use:          "create",
	Short:        "Create a deployment with service and autoscaling",
	Long:         `Creates a Deployment, exposes it through a Service, and optionally attaches a HorizontalPodAutoscaler or a KEDA ScaledObject.`,
	RunE:         runCreate,
	SilenceUsage: true,
}

func init() {
	flags := CreateCmd.Flags()

	flags.StringVar(&createName, "name", "", "Deployment name (required)")
	flags.StringVar(&createImage, "image", "", "Container image (required)")
	flags.Int32Var(&createReplicas, "replicas", 1, "Desired replica count")
	flags.Int32SliceVar(&createPorts, "port", nil, "Container port to expose (repeatable, default 80)")
	flags.StringArrayVarP(&createEnv, "env", "e", nil, "Environment variables (KEY=VALUE)")
	flags.StringArrayVar(&createLabels, "label", nil, "Additional labels (KEY=VALUE)")

	flags.StringVar(&createCPURequest, "cpu-request", "", "CPU request, e.g. 100m")
	flags.StringVar(&createCPULimit, "cpu-limit", "", "CPU limit, e.g. 500m")
	flags.StringVar(&createMemoryRequest, "memory-request", "", "Memory request, e.g. 128Mi")
	flags.StringVar(&createMemoryLimit, "memory-limit", "", "Memory limit, e.g. 512Mi")

	flags.StringVar(&createServiceType, "service-type", "ClusterIP", "Service type (ClusterIP, NodePort, LoadBalancer)")

	flags.StringVar(&createLivenessProbe, "liveness-probe", "", "Liveness probe as JSON")
	flags.StringVar(&createReadinessProbe, "readiness-probe", "", "Readiness probe as JSON")
	flags.StringVar(&createStartupProbe, "startup-probe", "", "Startup probe as JSON")

	flags.BoolVar(&createEnableAutoscaling, "enable-autoscaling", false, "Attach a HorizontalPodAutoscaler")
	flags.Int32Var(&createMinReplicas, "min-replicas", 1, "Autoscaler minimum replicas")
	flags.Int32Var(&createMaxReplicas, "max-replicas", 10, "Autoscaler maximum replicas")
	flags.Int32Var(&createCPUTarget, "cpu-target-percentage", 80, "HPA CPU utilization target")
	flags.Int32Var(&createMemoryTarget, "memory-target-percentage", 0, "HPA memory utilization target (0 disables)")

	flags.BoolVar(&createEnableKEDA, "enable-keda", false, "Attach a KEDA ScaledObject (takes precedence over --enable-autoscaling)")

	flags.BoolVar(&createKedaCPUTrigger, "keda-cpu-trigger", false, "Add a KEDA CPU utilization trigger")
	flags.Int32Var(&createKedaCPUThreshold, "keda-cpu-threshold", 0, "KEDA CPU trigger utilization percent")
	flags.BoolVar(&createKedaMemoryTrigger, "keda-memory-trigger", false, "Add a KEDA memory utilization trigger")
	flags.Int32Var(&createKedaMemThreshold, "keda-memory-threshold", 0, "KEDA memory trigger utilization percent")

	flags.BoolVar(&createKedaPromTrigger, "keda-prometheus-trigger", false, "Add a KEDA Prometheus trigger")
	flags.StringVar(&createKedaPromServer, "keda-prometheus-server", "", "Prometheus server address")
	flags.StringVar(&createKedaPromQuery, "keda-prometheus-query", "", "Prometheus query")
	flags.Float64Var(&createKedaPromThreshold, "keda-prometheus-threshold", 0, "Prometheus trigger threshold")

	flags.BoolVar(&createKedaKafkaTrigger, "keda-kafka-trigger", false, "Add a KEDA Kafka consumer-lag trigger")
	flags.StringVar(&createKedaKafkaServers, "keda-kafka-bootstrap-servers", "", "Kafka bootstrap servers")
	flags.StringVar(&createKedaKafkaGroup, "keda-kafka-consumer-group", "", "Kafka consumer group")
	flags.StringVar(&createKedaKafkaTopic, "keda-kafka-topic", "", "Kafka topic")
	flags.Int32Var(&createKedaKafkaLag, "keda-kafka-lag-threshold", 0, "Kafka lag threshold")

	flags.BoolVar(&createKedaRedisTrigger, "keda-redis-trigger", false, "Add a KEDA Redis trigger")
	flags.StringVar(&createKedaRedisAddress, "keda-redis-address", "", "Redis address")
	flags.StringVar(&createKedaRedisListName, "keda-redis-list-name", "", "Redis list name")
	flags.StringVar(&createKedaRedisStream, "keda-redis-stream-name", "", "Redis stream name")
	flags.Int32Var(&createKedaRedisThreshold, "keda-redis-threshold", 0, "Redis trigger threshold")

	flags.BoolVar(&createKedaRabbitTrigger, "keda-rabbitmq-trigger", false, "Add a KEDA RabbitMQ queue trigger")
	flags.StringVar(&createKedaRabbitHost, "keda-rabbitmq-host", "", "RabbitMQ host connection string")
	flags.StringVar(&createKedaRabbitQueue, "keda-rabbitmq-queue-name", "", "RabbitMQ queue name")
	flags.Int32Var(&createKedaRabbitLength, "keda-rabbitmq-queue-length", 0, "RabbitMQ queue length target")

	flags.StringArrayVar(&createKedaGeneric, "keda-trigger", nil, "Generic KEDA trigger as JSON (repeatable)")

	_ = CreateCmd.MarkFlagRequired("name")
	_ = CreateCmd.MarkFlagRequired("image")
}

func runCreate(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}
	if ns := common.Namespace(cmd); ns != "" {
		req.Namespace = ns
	}

	cfg, conn, err := common.Connect(cmd)
	if err != nil {
		return err
	}

	result := deploy.NewOrchestrator(conn, cfg).Create(cmd.Context(), req)

	if cliconfig.JSONOutput() {
		if err := printer.New(printer.OutputTypeJSON, false).PrintJSON(result); err != nil {
			return err
		}
	} else {
		renderCreateResult(result)
	}

	if !result.Success {
		return fmt.Errorf("deployment creation failed at step %q: %s", result.FailedStep, result.Message)
	}
	return nil
}

// buildRequest assembles the deployment request from the flag values.
func buildRequest() (*models.DeploymentRequest, error) {
	env, err := common.ParseKeyValues(createEnv)
	if err != nil {
		return nil, fmt.Errorf("invalid --env: %w", err)
	}
	labels, err := common.ParseKeyValues(createLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --label: %w", err)
	}

	ports := createPorts
	if len(ports) == 0 {
		ports = []int32{80}
	}

	req := &models.DeploymentRequest{
		Name:     common.NormalizeName(createName),
		Image:    createImage,
		Replicas: createReplicas,
		Ports:    ports,
		Env:      env,
		Labels:   labels,
		Resources: models.ResourceSpec{
			CPURequest:    createCPURequest,
			CPULimit:      createCPULimit,
			MemoryRequest: createMemoryRequest,
			MemoryLimit:   createMemoryLimit,
		},
		ServiceType: createServiceType,
		Mode:        models.ScalingNone,
	}

	if createLivenessProbe != "" {
		req.LivenessProbe = json.RawMessage(createLivenessProbe)
	}
	if createReadinessProbe != "" {
		req.ReadinessProbe = json.RawMessage(createReadinessProbe)
	}
	if createStartupProbe != "" {
		req.StartupProbe = json.RawMessage(createStartupProbe)
	}

	if createEnableAutoscaling {
		req.Mode = models.ScalingThreshold
		req.Threshold = &models.ThresholdConfig{
			MinReplicas:   createMinReplicas,
			MaxReplicas:   createMaxReplicas,
			CPUPercent:    createCPUTarget,
			MemoryPercent: createMemoryTarget,
		}
	}
	if createEnableKEDA {
		// Event-driven scaling wins; the orchestrator warns when a threshold
		// config was also present.
		req.Mode = models.ScalingEvent
		req.Event = &models.EventConfig{
			MinReplicas: createMinReplicas,
			MaxReplicas: createMaxReplicas,
			Triggers:    buildTriggerSpecs(),
		}
	}
	return req, nil
}

// buildTriggerSpecs maps the per-source trigger flags to trigger specs. Zero
// thresholds are left out so the compiler applies its defaults.
func buildTriggerSpecs() []models.TriggerSpec {
	var specs []models.TriggerSpec

	if createKedaCPUTrigger {
		specs = append(specs, models.TriggerSpec{
			Kind:   models.TriggerCPU,
			Params: thresholdParams("value", createKedaCPUThreshold),
		})
	}
	if createKedaMemoryTrigger {
		specs = append(specs, models.TriggerSpec{
			Kind:   models.TriggerMemory,
			Params: thresholdParams("value", createKedaMemThreshold),
		})
	}
	if createKedaPromTrigger {
		params := map[string]string{
			"serverAddress": createKedaPromServer,
			"query":         createKedaPromQuery,
		}
		if createKedaPromThreshold > 0 {
			params["threshold"] = strconv.FormatFloat(createKedaPromThreshold, 'f', -1, 64)
		}
		specs = append(specs, models.TriggerSpec{Kind: models.TriggerCustomQuery, Params: params})
	}
	if createKedaKafkaTrigger {
		params := map[string]string{
			"bootstrapServers": createKedaKafkaServers,
			"consumerGroup":    createKedaKafkaGroup,
			"topic":            createKedaKafkaTopic,
		}
		if createKedaKafkaLag > 0 {
			params["lagThreshold"] = strconv.Itoa(int(createKedaKafkaLag))
		}
		specs = append(specs, models.TriggerSpec{Kind: models.TriggerQueueLag, Params: params})
	}
	if createKedaRedisTrigger {
		params := map[string]string{
			"address":    createKedaRedisAddress,
			"listName":   createKedaRedisListName,
			"streamName": createKedaRedisStream,
		}
		if createKedaRedisThreshold > 0 {
			params["threshold"] = strconv.Itoa(int(createKedaRedisThreshold))
		}
		specs = append(specs, models.TriggerSpec{Kind: models.TriggerStream, Params: params})
	}
	if createKedaRabbitTrigger {
		params := map[string]string{
			"host":      createKedaRabbitHost,
			"queueName": createKedaRabbitQueue,
		}
		if createKedaRabbitLength > 0 {
			params["queueLength"] = strconv.Itoa(int(createKedaRabbitLength))
		}
		specs = append(specs, models.TriggerSpec{Kind: models.TriggerBrokerQueue, Params: params})
	}
	for _, raw := range createKedaGeneric {
		specs = append(specs, models.TriggerSpec{Kind: "generic", Raw: json.RawMessage(raw)})
	}
	return specs
}

func thresholdParams(key string, value int32) map[string]string {
	if value <= 0 {
		return nil
	}
	return map[string]string{key: strconv.Itoa(int(value))}
}

func renderCreateResult(result *models.DeploymentResult) {
	if result.Success {
		printer.PrintSuccess(result.Message)
		printer.PrintInfo("deployment id: " + result.DeploymentID)
	} else {
		printer.PrintError(result.Message)
	}

	if len(result.Resources) > 0 {
		printer.PrintInfo("")
		table := printer.NewTablePrinter(os.Stdout)
		table.SetHeaders("KIND", "NAME", "NAMESPACE")
		for _, ref := range result.Resources {
			table.AddRow(ref.Kind, ref.Name, ref.Namespace)
		}
		_ = table.Render()
	}

	for _, ep := range result.Endpoints {
		if ep.URL != nil {
			printer.PrintInfo(fmt.Sprintf("endpoint: %s (%s)", *ep.URL, ep.Type))
		} else {
			printer.PrintInfo(fmt.Sprintf("endpoint: %s (%s)", ep.State, ep.Type))
		}
	}
	if result.PodStatus != nil {
		printer.PrintInfo(fmt.Sprintf("pods: %d/%d ready", result.PodStatus.Ready, result.PodStatus.Total))
	}
	for _, warning := range result.Warnings {
		printer.PrintWarning(warning)
	}
	for _, problem := range result.Problems {
		printer.PrintWarning(problem.String())
	}
}
