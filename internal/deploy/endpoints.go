package deploy

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/ptr"

	"github.com/kscale-dev/kscale/internal/models"
	"github.com/kscale-dev/kscale/internal/utils"
)

// Endpoint states. A LoadBalancer without an assigned address reports
// StatePending with a nil URL.
const (
	StateReady       = "ready"
	StatePending     = "pending"
	StateAnyNode     = "use any node address"
	StateClusterOnly = "cluster-internal only"
	StateNotFound    = "not found"
)

// serviceEndpoints fetches one service and resolves how to reach it.
func (o *Orchestrator) serviceEndpoints(ctx context.Context, namespace, serviceName string) []models.Endpoint {
	res, err := o.conn.Run(ctx, namespace, "get", "service", serviceName, "-o", "json")
	if err != nil || !res.Success {
		return []models.Endpoint{{Name: serviceName, State: StateNotFound}}
	}
	var svc corev1.Service
	if err := json.Unmarshal([]byte(res.Stdout), &svc); err != nil {
		return []models.Endpoint{{Name: serviceName, State: StateNotFound}}
	}

	nodeAddr := ""
	if svc.Spec.Type == corev1.ServiceTypeNodePort {
		nodeAddr = o.nodeAddress(ctx)
	}
	return []models.Endpoint{ResolveEndpoint(&svc, nodeAddr)}
}

// ResolveEndpoint maps a fetched service to a reachable address per service
// type. nodeAddress is only consulted for NodePort services; empty means no
// node address was discoverable and a placeholder is used.
func ResolveEndpoint(svc *corev1.Service, nodeAddress string) models.Endpoint {
	ep := models.Endpoint{Name: svc.Name, Type: string(svc.Spec.Type)}
	if ep.Type == "" {
		ep.Type = string(corev1.ServiceTypeClusterIP)
	}
	if len(svc.Spec.Ports) == 0 {
		ep.State = StateNotFound
		return ep
	}
	port := svc.Spec.Ports[0]

	switch svc.Spec.Type {
	case corev1.ServiceTypeLoadBalancer:
		addr := ""
		if ingress := svc.Status.LoadBalancer.Ingress; len(ingress) > 0 {
			addr = ingress[0].IP
			if addr == "" {
				addr = ingress[0].Hostname
			}
		}
		if addr == "" {
			ep.State = StatePending
			return ep
		}
		ep.URL = ptr.To(fmt.Sprintf("http://%s:%d", addr, port.Port))
		ep.State = StateReady

	case corev1.ServiceTypeNodePort:
		addr := nodeAddress
		state := StateReady
		if addr == "" {
			addr = "NODE_IP"
			state = StateAnyNode
		}
		ep.URL = ptr.To(fmt.Sprintf("http://%s:%d", addr, port.NodePort))
		ep.State = state

	default:
		ep.URL = ptr.To(fmt.Sprintf("http://%s:%d", svc.Spec.ClusterIP, port.Port))
		ep.State = StateClusterOnly
	}
	return ep
}

func (o *Orchestrator) nodeAddress(ctx context.Context) string {
	nodes, err := o.conn.Nodes(ctx)
	if err != nil {
		return ""
	}
	return utils.FirstNodeAddress(nodes)
}
