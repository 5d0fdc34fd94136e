package kubernetes

import (
	"context"
	"fmt"
	"strconv"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"llm-engine-service/internal/core/domain"
	output "llm-engine-service/internal/core/ports/output"
)

var inferenceServiceGVR = schema.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

// checkpointMountPath is where the KServe storage initializer places STORAGE_URI
const checkpointMountPath = "/mnt/models"

// ServingOptions configures the KServe predictor
type ServingOptions struct {
	Namespace string
	TGIImage  string
}

type servingOrchestrator struct {
	client dynamic.Interface
	opts   ServingOptions
}

// NewServingOrchestrator serves model endpoints as KServe InferenceServices
// running text-generation-inference. A nil client yields an orchestrator
// that reports itself unavailable.
func NewServingOrchestrator(client dynamic.Interface, opts ServingOptions) output.ServingOrchestrator {
	if opts.Namespace == "" {
		opts.Namespace = "llm-serving"
	}
	if opts.TGIImage == "" {
		opts.TGIImage = "ghcr.io/huggingface/text-generation-inference"
	}
	return &servingOrchestrator{client: client, opts: opts}
}

func (o *servingOrchestrator) IsAvailable() bool {
	return o.client != nil
}

func (o *servingOrchestrator) Deploy(
	ctx context.Context,
	endpoint *domain.ModelEndpoint,
	model *domain.BaseModel,
) (*output.ServingDeployment, error) {
	obj := o.buildInferenceServiceCR(endpoint, model)

	resource := o.client.Resource(inferenceServiceGVR).Namespace(o.opts.Namespace)
	created, err := resource.Create(ctx, obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		created, err = resource.Get(ctx, obj.GetName(), metav1.GetOptions{})
	}
	if err != nil {
		return nil, fmt.Errorf("create kserve inferenceservice: %w", err)
	}

	deployment := &output.ServingDeployment{
		ExternalID: string(created.GetUID()),
	}
	if status := parseServingStatus(created); status.Ready {
		deployment.URL = status.URL
	}
	return deployment, nil
}

func (o *servingOrchestrator) Undeploy(ctx context.Context, endpoint *domain.ModelEndpoint) error {
	err := o.client.Resource(inferenceServiceGVR).
		Namespace(o.opts.Namespace).
		Delete(ctx, endpoint.ID, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete kserve inferenceservice: %w", err)
	}
	return nil
}

func (o *servingOrchestrator) GetStatus(ctx context.Context, endpoint *domain.ModelEndpoint) (*output.ServingStatus, error) {
	obj, err := o.client.Resource(inferenceServiceGVR).
		Namespace(o.opts.Namespace).
		Get(ctx, endpoint.ID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return &output.ServingStatus{Error: "inference service not found"}, nil
		}
		return nil, fmt.Errorf("get kserve inferenceservice: %w", err)
	}

	return parseServingStatus(obj), nil
}

func (o *servingOrchestrator) buildInferenceServiceCR(
	endpoint *domain.ModelEndpoint,
	model *domain.BaseModel,
) *unstructured.Unstructured {
	userLabels := make(map[string]string, len(endpoint.Labels)+3)
	for k, v := range endpoint.Labels {
		userLabels[k] = v
	}
	userLabels[labelEndpointID] = endpoint.ID
	userLabels[labelBaseModel] = endpoint.ModelName
	if endpoint.FineTuneID != "" {
		userLabels[labelFineTuneID] = endpoint.FineTuneID
	}
	labels := labelsFor(userLabels)

	gpuQuantity := strconv.Itoa(endpoint.GPUs)

	// Fine-tuned weights are pulled by the storage initializer, base models
	// straight from the Hugging Face hub
	modelID := model.HuggingFaceRepo
	env := []interface{}{
		envVar("PORT", "8080"),
	}
	if endpoint.CheckpointPath != "" {
		modelID = checkpointMountPath
		env = append(env, envVar("STORAGE_URI", endpoint.CheckpointPath))
	}

	container := map[string]interface{}{
		"name":  "kserve-container",
		"image": o.opts.TGIImage + ":" + endpoint.FrameworkImageTag,
		"args": []interface{}{
			"--model-id", modelID,
			"--num-shard", strconv.Itoa(endpoint.NumShards),
		},
		"env": env,
		"ports": []interface{}{
			map[string]interface{}{"containerPort": int64(8080), "protocol": "TCP"},
		},
		"resources": map[string]interface{}{
			"limits":   map[string]interface{}{gpuResource: gpuQuantity},
			"requests": map[string]interface{}{gpuResource: gpuQuantity},
		},
	}

	predictor := map[string]interface{}{
		"minReplicas": int64(endpoint.MinWorkers),
		"maxReplicas": int64(endpoint.MaxWorkers),
		"containers":  []interface{}{container},
	}
	if endpoint.GPUType != "" {
		predictor["nodeSelector"] = map[string]interface{}{acceleratorSelector: endpoint.GPUType}
	}

	obj := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "serving.kserve.io/v1beta1",
			"kind":       "InferenceService",
			"metadata": map[string]interface{}{
				"name":   endpoint.ID,
				"labels": labels,
				"annotations": map[string]interface{}{
					annotationName:  endpoint.Name,
					annotationOwner: endpoint.Owner,
				},
			},
			"spec": map[string]interface{}{
				"predictor": predictor,
			},
		},
	}

	return obj
}

func parseServingStatus(obj *unstructured.Unstructured) *output.ServingStatus {
	status := &output.ServingStatus{}

	statusMap, found, _ := unstructured.NestedMap(obj.Object, "status")
	if !found {
		return status
	}

	// Get URL
	status.URL, _, _ = unstructured.NestedString(statusMap, "url")

	// Check conditions for ready state
	conditions, found, _ := unstructured.NestedSlice(statusMap, "conditions")
	if found {
		for _, cond := range conditions {
			condMap, ok := cond.(map[string]interface{})
			if !ok {
				continue
			}
			condType, _ := condMap["type"].(string)
			condStatus, _ := condMap["status"].(string)

			if condType == "Ready" {
				status.Ready = condStatus == "True"
				if condStatus == "False" {
					if msg, ok := condMap["message"].(string); ok {
						status.Error = msg
					}
				}
				break
			}
		}
	}

	return status
}

// Ensure interface compliance
var _ output.ServingOrchestrator = (*servingOrchestrator)(nil)
