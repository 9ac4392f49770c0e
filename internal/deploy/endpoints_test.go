package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func service(svcType corev1.ServiceType, ports ...corev1.ServicePort) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "web-service"},
		Spec:       corev1.ServiceSpec{Type: svcType, Ports: ports},
	}
}

func TestResolveEndpoint_LoadBalancerAssignedIP(t *testing.T) {
	svc := service(corev1.ServiceTypeLoadBalancer, corev1.ServicePort{Port: 80})
	svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{IP: "203.0.113.10"}}

	ep := ResolveEndpoint(svc, "")

	require.NotNil(t, ep.URL)
	assert.Equal(t, "http://203.0.113.10:80", *ep.URL)
	assert.Equal(t, StateReady, ep.State)
	assert.Equal(t, "LoadBalancer", ep.Type)
}

func TestResolveEndpoint_LoadBalancerHostnameFallback(t *testing.T) {
	svc := service(corev1.ServiceTypeLoadBalancer, corev1.ServicePort{Port: 443})
	svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{Hostname: "lb.example.com"}}

	ep := ResolveEndpoint(svc, "")

	require.NotNil(t, ep.URL)
	assert.Equal(t, "http://lb.example.com:443", *ep.URL)
}

func TestResolveEndpoint_LoadBalancerPending(t *testing.T) {
	svc := service(corev1.ServiceTypeLoadBalancer, corev1.ServicePort{Port: 80})

	ep := ResolveEndpoint(svc, "")

	assert.Nil(t, ep.URL)
	assert.Equal(t, StatePending, ep.State)
}

func TestResolveEndpoint_NodePortWithNodeAddress(t *testing.T) {
	svc := service(corev1.ServiceTypeNodePort, corev1.ServicePort{Port: 80, NodePort: 30080})

	ep := ResolveEndpoint(svc, "203.0.113.7")

	require.NotNil(t, ep.URL)
	assert.Equal(t, "http://203.0.113.7:30080", *ep.URL)
	assert.Equal(t, StateReady, ep.State)
}

func TestResolveEndpoint_NodePortPlaceholder(t *testing.T) {
	svc := service(corev1.ServiceTypeNodePort, corev1.ServicePort{Port: 80, NodePort: 30080})

	ep := ResolveEndpoint(svc, "")

	require.NotNil(t, ep.URL)
	assert.Equal(t, "http://NODE_IP:30080", *ep.URL)
	assert.Equal(t, StateAnyNode, ep.State)
}

func TestResolveEndpoint_ClusterIP(t *testing.T) {
	svc := service(corev1.ServiceTypeClusterIP, corev1.ServicePort{Port: 8080})
	svc.Spec.ClusterIP = "10.96.4.2"

	ep := ResolveEndpoint(svc, "")

	require.NotNil(t, ep.URL)
	assert.Equal(t, "http://10.96.4.2:8080", *ep.URL)
	assert.Equal(t, StateClusterOnly, ep.State)
}

func TestResolveEndpoint_UntypedDefaultsToClusterIP(t *testing.T) {
	svc := service("", corev1.ServicePort{Port: 80})
	svc.Spec.ClusterIP = "10.96.4.3"

	ep := ResolveEndpoint(svc, "")

	assert.Equal(t, "ClusterIP", ep.Type)
	require.NotNil(t, ep.URL)
	assert.Equal(t, "http://10.96.4.3:80", *ep.URL)
}
