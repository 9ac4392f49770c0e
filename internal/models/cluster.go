package models

// NodeInfo summarizes one cluster node.
type NodeInfo struct {
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	Roles          []string `json:"roles"`
	KernelVersion  string   `json:"kernel_version,omitempty"`
	KubeletVersion string   `json:"kubelet_version,omitempty"`
}

// ClusterInfo is a snapshot of the connected cluster and its installed
// tooling.
type ClusterInfo struct {
	APIVersion    string     `json:"api_version"`
	Context       string     `json:"context"`
	Nodes         []NodeInfo `json:"nodes"`
	Namespaces    []string   `json:"namespaces"`
	HelmVersion   string     `json:"helm_version"`
	KedaInstalled bool       `json:"keda_installed"`
	KedaVersion   string     `json:"keda_version,omitempty"`
}

// InstallResult reports one addon installation attempt. Already-installed
// addons short-circuit to success.
type InstallResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status,omitempty"`
}

// AddonStatus is one row of the addon overview table.
type AddonStatus struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
}
