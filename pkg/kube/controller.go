// Package kube applies grid points to the benchmark deployment and
// watches its rollout state through the Kubernetes API.
package kube

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/microtune/microtune/pkg/grid"
)

// ResourceRequest is the requested cpu and memory of one deployment's
// first container.
type ResourceRequest struct {
	CPUMillis int
	MemoryMiB int
}

// Controller manipulates the deployments of the benchmark namespace.
type Controller struct {
	Client    kubernetes.Interface
	Namespace string
	Logger    *slog.Logger
}

// NewController builds a Controller from a kubeconfig file. An empty
// path falls back to ~/.kube/config.
func NewController(kubeconfig, namespace string, logger *slog.Logger) (*Controller, error) {
	if kubeconfig == "" {
		kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
	}
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("kube: build config: %w", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("kube: create client: %w", err)
	}

	return &Controller{Client: client, Namespace: namespace, Logger: logger}, nil
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Apply sets the resource limits and replica count of one deployment to
// a grid point. Requests are set equal to limits so the scheduler sees
// exactly what the experiment varies.
func (c *Controller) Apply(ctx context.Context, deployment string, point grid.Point) error {
	deployments := c.Client.AppsV1().Deployments(c.Namespace)
	d, err := deployments.Get(ctx, deployment, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("kube: get deployment %s: %w", deployment, err)
	}
	if len(d.Spec.Template.Spec.Containers) == 0 {
		return fmt.Errorf("kube: deployment %s has no containers", deployment)
	}

	replicas := int32(point.Replicas)
	d.Spec.Replicas = &replicas

	resources := corev1.ResourceList{
		corev1.ResourceCPU:    resource.MustParse(fmt.Sprintf("%dm", point.CPUMillis)),
		corev1.ResourceMemory: resource.MustParse(fmt.Sprintf("%dMi", point.MemoryMiB)),
	}
	d.Spec.Template.Spec.Containers[0].Resources = corev1.ResourceRequirements{
		Requests: resources,
		Limits:   resources,
	}

	if _, err := deployments.Update(ctx, d, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("kube: update deployment %s: %w", deployment, err)
	}

	c.logger().Info("deployment updated",
		"deployment", deployment,
		"cpu", point.CPUMillis,
		"memory", point.MemoryMiB,
		"replicas", point.Replicas,
	)
	return nil
}

// Healthy reports whether the deployment's observed generation is
// current and every desired replica is ready.
func (c *Controller) Healthy(ctx context.Context, deployment string) (bool, error) {
	d, err := c.Client.AppsV1().Deployments(c.Namespace).Get(ctx, deployment, metav1.GetOptions{})
	if err != nil {
		return false, fmt.Errorf("kube: get deployment %s: %w", deployment, err)
	}

	desired := int32(1)
	if d.Spec.Replicas != nil {
		desired = *d.Spec.Replicas
	}
	if d.Status.ObservedGeneration < d.Generation {
		return false, nil
	}
	return d.Status.ReadyReplicas == desired && d.Status.UpdatedReplicas == desired, nil
}

// CreateNamespace creates the benchmark namespace. An existing one of
// the same name is deleted first and recreated after a short grace
// period so each run starts clean.
func (c *Controller) CreateNamespace(ctx context.Context) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   c.Namespace,
			Labels: map[string]string{"microtune/benchmark": "true"},
		},
	}

	_, err := c.Client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		c.logger().Info("namespace exists, recreating", "namespace", c.Namespace)
		if err := c.DeleteNamespace(ctx); err != nil {
			return err
		}
		time.Sleep(5 * time.Second)
		_, err = c.Client.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	}
	if err != nil {
		return fmt.Errorf("kube: create namespace %s: %w", c.Namespace, err)
	}
	return nil
}

// DeleteNamespace removes the benchmark namespace and everything in it.
func (c *Controller) DeleteNamespace(ctx context.Context) error {
	err := c.Client.CoreV1().Namespaces().Delete(ctx, c.Namespace, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("kube: delete namespace %s: %w", c.Namespace, err)
	}
	return nil
}

// NodePort returns the node port of the named service, the entry point
// the load driver targets.
func (c *Controller) NodePort(ctx context.Context, service string) (int, error) {
	svc, err := c.Client.CoreV1().Services(c.Namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("kube: get service %s: %w", service, err)
	}
	for _, port := range svc.Spec.Ports {
		if port.NodePort > 0 {
			return int(port.NodePort), nil
		}
	}
	return 0, fmt.Errorf("kube: service %s exposes no node port", service)
}

// ResourceRequests lists the requested cpu and memory of every
// deployment in the namespace.
func (c *Controller) ResourceRequests(ctx context.Context) (map[string]ResourceRequest, error) {
	list, err := c.Client.AppsV1().Deployments(c.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("kube: list deployments: %w", err)
	}

	out := make(map[string]ResourceRequest, len(list.Items))
	for _, d := range list.Items {
		if len(d.Spec.Template.Spec.Containers) == 0 {
			continue
		}
		requests := d.Spec.Template.Spec.Containers[0].Resources.Requests
		out[d.Name] = ResourceRequest{
			CPUMillis: int(requests.Cpu().MilliValue()),
			MemoryMiB: int(requests.Memory().Value() / (1 << 20)),
		}
	}
	return out, nil
}
