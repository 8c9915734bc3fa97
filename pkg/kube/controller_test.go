package kube

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/microtune/microtune/pkg/grid"
)

func testDeployment(name, namespace string, replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  name,
							Image: name + ":latest",
							Resources: corev1.ResourceRequirements{
								Requests: corev1.ResourceList{
									corev1.ResourceCPU:    resource.MustParse("100m"),
									corev1.ResourceMemory: resource.MustParse("128Mi"),
								},
							},
						},
					},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			ReadyReplicas:   replicas,
			UpdatedReplicas: replicas,
		},
	}
}

func TestController_Apply(t *testing.T) {
	client := fake.NewSimpleClientset(testDeployment("webui", "teastore", 1))
	c := &Controller{Client: client, Namespace: "teastore"}

	point := grid.Point{CPUMillis: 300, MemoryMiB: 512, Replicas: 2}
	if err := c.Apply(context.Background(), "webui", point); err != nil {
		t.Fatalf("Apply error: %v", err)
	}

	d, err := client.AppsV1().Deployments("teastore").Get(context.Background(), "webui", metav1.GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if *d.Spec.Replicas != 2 {
		t.Errorf("replicas = %d, want 2", *d.Spec.Replicas)
	}

	limits := d.Spec.Template.Spec.Containers[0].Resources.Limits
	if got := limits.Cpu().MilliValue(); got != 300 {
		t.Errorf("cpu limit = %dm, want 300m", got)
	}
	if got := limits.Memory().Value(); got != 512<<20 {
		t.Errorf("memory limit = %d, want %d", got, 512<<20)
	}

	// Requests track limits so the scheduler sees the varied point.
	requests := d.Spec.Template.Spec.Containers[0].Resources.Requests
	if got := requests.Cpu().MilliValue(); got != 300 {
		t.Errorf("cpu request = %dm, want 300m", got)
	}
}

func TestController_Apply_MissingDeployment(t *testing.T) {
	c := &Controller{Client: fake.NewSimpleClientset(), Namespace: "teastore"}
	err := c.Apply(context.Background(), "webui", grid.Point{CPUMillis: 100, MemoryMiB: 128, Replicas: 1})
	if err == nil {
		t.Fatal("Apply on a missing deployment should fail")
	}
}

func TestController_Healthy(t *testing.T) {
	d := testDeployment("webui", "teastore", 2)
	client := fake.NewSimpleClientset(d)
	c := &Controller{Client: client, Namespace: "teastore"}

	healthy, err := c.Healthy(context.Background(), "webui")
	if err != nil {
		t.Fatalf("Healthy error: %v", err)
	}
	if !healthy {
		t.Error("deployment with all replicas ready should be healthy")
	}

	d.Status.ReadyReplicas = 1
	if _, err := client.AppsV1().Deployments("teastore").Update(context.Background(), d, metav1.UpdateOptions{}); err != nil {
		t.Fatal(err)
	}
	healthy, err = c.Healthy(context.Background(), "webui")
	if err != nil {
		t.Fatalf("Healthy error: %v", err)
	}
	if healthy {
		t.Error("deployment with missing replicas should not be healthy")
	}
}

func TestController_NamespaceLifecycle(t *testing.T) {
	client := fake.NewSimpleClientset()
	c := &Controller{Client: client, Namespace: "teastore"}
	ctx := context.Background()

	if err := c.CreateNamespace(ctx); err != nil {
		t.Fatalf("CreateNamespace error: %v", err)
	}
	ns, err := client.CoreV1().Namespaces().Get(ctx, "teastore", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("namespace not created: %v", err)
	}
	if ns.Labels["microtune/benchmark"] != "true" {
		t.Error("namespace missing benchmark label")
	}

	if err := c.DeleteNamespace(ctx); err != nil {
		t.Fatalf("DeleteNamespace error: %v", err)
	}
	// Deleting again is fine.
	if err := c.DeleteNamespace(ctx); err != nil {
		t.Errorf("DeleteNamespace on a missing namespace should be a no-op, got %v", err)
	}
}

func TestController_NodePort(t *testing.T) {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "webui", Namespace: "teastore"},
		Spec: corev1.ServiceSpec{
			Type:  corev1.ServiceTypeNodePort,
			Ports: []corev1.ServicePort{{Port: 8080, NodePort: 30080}},
		},
	}
	c := &Controller{Client: fake.NewSimpleClientset(svc), Namespace: "teastore"}

	port, err := c.NodePort(context.Background(), "webui")
	if err != nil {
		t.Fatalf("NodePort error: %v", err)
	}
	if port != 30080 {
		t.Errorf("NodePort = %d, want 30080", port)
	}

	clusterIP := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: "internal", Namespace: "teastore"},
		Spec:       corev1.ServiceSpec{Ports: []corev1.ServicePort{{Port: 8080}}},
	}
	c.Client = fake.NewSimpleClientset(clusterIP)
	if _, err := c.NodePort(context.Background(), "internal"); err == nil {
		t.Error("NodePort on a ClusterIP service should fail")
	}
}

func TestController_ResourceRequests(t *testing.T) {
	client := fake.NewSimpleClientset(
		testDeployment("webui", "teastore", 1),
		testDeployment("auth", "teastore", 1),
	)
	c := &Controller{Client: client, Namespace: "teastore"}

	requests, err := c.ResourceRequests(context.Background())
	if err != nil {
		t.Fatalf("ResourceRequests error: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("got %d deployments, want 2", len(requests))
	}
	want := ResourceRequest{CPUMillis: 100, MemoryMiB: 128}
	for _, name := range []string{"webui", "auth"} {
		if requests[name] != want {
			t.Errorf("requests[%s] = %+v, want %+v", name, requests[name], want)
		}
	}
}
