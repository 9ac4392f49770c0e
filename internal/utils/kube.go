// Package utils holds small stateless helpers shared across components.
package utils

import (
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// PodReady reports whether every container in the pod is ready. A pod with no
// reported container statuses is not ready.
func PodReady(pod *corev1.Pod) bool {
	if len(pod.Status.ContainerStatuses) == 0 {
		return false
	}
	for _, status := range pod.Status.ContainerStatuses {
		if !status.Ready {
			return false
		}
	}
	return true
}

// FirstNodeAddress picks an address usable to reach a NodePort service.
// External addresses win; any reported address is better than none.
func FirstNodeAddress(nodes []corev1.Node) string {
	for _, node := range nodes {
		for _, addr := range node.Status.Addresses {
			if addr.Type == corev1.NodeExternalIP && addr.Address != "" {
				return addr.Address
			}
		}
	}
	for _, node := range nodes {
		for _, addr := range node.Status.Addresses {
			if addr.Address != "" {
				return addr.Address
			}
		}
	}
	return ""
}

// NodeRoles extracts the role names from a node's role labels. Nodes without
// role labels report "<none>", matching kubectl's rendering.
func NodeRoles(node *corev1.Node) []string {
	var roles []string
	for label := range node.Labels {
		if role, ok := strings.CutPrefix(label, "node-role.kubernetes.io/"); ok && role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return []string{"<none>"}
	}
	sort.Strings(roles)
	return roles
}

// NodeStatus condenses a node's Ready condition into Ready, NotReady or
// Unknown.
func NodeStatus(node *corev1.Node) string {
	for _, cond := range node.Status.Conditions {
		if cond.Type != corev1.NodeReady {
			continue
		}
		if cond.Status == corev1.ConditionTrue {
			return "Ready"
		}
		return "NotReady"
	}
	return "Unknown"
}

// ParseTopLine splits one row of `kubectl top ... --no-headers` output into
// name, cpu and memory columns.
func ParseTopLine(line string) (name, cpu, memory string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// FormatBytes renders a byte count with binary units, e.g. "512.0Mi".
func FormatBytes(bytes float64) string {
	const step = 1024.0
	units := []string{"B", "Ki", "Mi", "Gi", "Ti"}
	value := bytes
	for _, unit := range units {
		if value < step || unit == units[len(units)-1] {
			return fmt.Sprintf("%.1f%s", value, unit)
		}
		value /= step
	}
	return fmt.Sprintf("%.1fTi", value)
}
