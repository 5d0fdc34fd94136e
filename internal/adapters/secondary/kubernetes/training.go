package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	output "llm-engine-service/internal/core/ports/output"
)

var jobGVR = schema.GroupVersionResource{
	Group:    "batch",
	Version:  "v1",
	Resource: "jobs",
}

// TrainingOptions configures where and how fine-tune Jobs run
type TrainingOptions struct {
	Namespace        string
	ServiceAccount   string
	TTLAfterFinished time.Duration
}

type trainingOrchestrator struct {
	client dynamic.Interface
	opts   TrainingOptions
}

// NewTrainingOrchestrator runs fine-tunes as batch/v1 Jobs. A nil client
// yields an orchestrator that reports itself unavailable.
func NewTrainingOrchestrator(client dynamic.Interface, opts TrainingOptions) output.TrainingOrchestrator {
	if opts.Namespace == "" {
		opts.Namespace = "llm-fine-tunes"
	}
	return &trainingOrchestrator{client: client, opts: opts}
}

func (o *trainingOrchestrator) IsAvailable() bool {
	return o.client != nil
}

func (o *trainingOrchestrator) Launch(ctx context.Context, spec output.TrainingJobSpec) (string, error) {
	obj, err := o.buildJob(spec)
	if err != nil {
		return "", err
	}

	_, err = o.client.Resource(jobGVR).
		Namespace(o.opts.Namespace).
		Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		// Redelivered launch: the Job from the previous attempt is ours
		if apierrors.IsAlreadyExists(err) {
			return obj.GetName(), nil
		}
		return "", fmt.Errorf("create training job: %w", err)
	}

	return obj.GetName(), nil
}

func (o *trainingOrchestrator) GetStatus(ctx context.Context, jobName string) (*output.TrainingJobStatus, error) {
	obj, err := o.client.Resource(jobGVR).
		Namespace(o.opts.Namespace).
		Get(ctx, jobName, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return &output.TrainingJobStatus{State: output.TrainingJobMissing}, nil
		}
		return nil, fmt.Errorf("get training job: %w", err)
	}

	return parseJobStatus(obj), nil
}

func (o *trainingOrchestrator) Cancel(ctx context.Context, jobName string) error {
	propagation := metav1.DeletePropagationBackground
	err := o.client.Resource(jobGVR).
		Namespace(o.opts.Namespace).
		Delete(ctx, jobName, metav1.DeleteOptions{PropagationPolicy: &propagation})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete training job: %w", err)
	}
	return nil
}

func (o *trainingOrchestrator) buildJob(spec output.TrainingJobSpec) (*unstructured.Unstructured, error) {
	ft := spec.FineTune
	base := spec.BaseModel

	hpJSON, err := json.Marshal(ft.Hyperparameters)
	if err != nil {
		return nil, fmt.Errorf("marshal hyperparameters: %w", err)
	}

	labels := labelsFor(map[string]string{
		labelFineTuneID: ft.ID,
		labelBaseModel:  ft.BaseModel,
	})

	gpus := base.GPUs
	if gpus <= 0 {
		gpus = 1
	}
	gpuQuantity := strconv.Itoa(gpus)

	container := map[string]interface{}{
		"name":  "fine-tune",
		"image": base.FineTuneImageRef(),
		"env": []interface{}{
			envVar("FINE_TUNE_ID", ft.ID),
			envVar("BASE_MODEL", ft.BaseModel),
			envVar("BASE_MODEL_REPO", base.HuggingFaceRepo),
			envVar("TRAINING_FILE", ft.TrainingFile),
			envVar("VALIDATION_FILE", ft.ValidationFile),
			envVar("HYPERPARAMETERS", string(hpJSON)),
			envVar("OUTPUT_LOCATION", spec.OutputLocation),
		},
		"resources": map[string]interface{}{
			"limits":   map[string]interface{}{gpuResource: gpuQuantity},
			"requests": map[string]interface{}{gpuResource: gpuQuantity},
		},
	}

	podSpec := map[string]interface{}{
		"restartPolicy": "Never",
		"containers":    []interface{}{container},
	}
	if o.opts.ServiceAccount != "" {
		podSpec["serviceAccountName"] = o.opts.ServiceAccount
	}
	if base.GPUType != "" {
		podSpec["nodeSelector"] = map[string]interface{}{acceleratorSelector: base.GPUType}
	}

	jobSpec := map[string]interface{}{
		"backoffLimit": int64(0),
		"template": map[string]interface{}{
			"metadata": map[string]interface{}{"labels": labels},
			"spec":     podSpec,
		},
	}
	if o.opts.TTLAfterFinished > 0 {
		jobSpec["ttlSecondsAfterFinished"] = int64(o.opts.TTLAfterFinished.Seconds())
	}

	obj := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "batch/v1",
			"kind":       "Job",
			"metadata": map[string]interface{}{
				"name":        ft.ID,
				"labels":      labels,
				"annotations": map[string]interface{}{annotationOwner: ft.Owner},
			},
			"spec": jobSpec,
		},
	}
	return obj, nil
}

func parseJobStatus(obj *unstructured.Unstructured) *output.TrainingJobStatus {
	status := &output.TrainingJobStatus{State: output.TrainingJobActive}

	statusMap, found, _ := unstructured.NestedMap(obj.Object, "status")
	if !found {
		return status
	}

	if succeeded, _, _ := unstructured.NestedInt64(statusMap, "succeeded"); succeeded > 0 {
		status.State = output.TrainingJobSucceeded
		return status
	}

	failed, _, _ := unstructured.NestedInt64(statusMap, "failed")

	conditions, found, _ := unstructured.NestedSlice(statusMap, "conditions")
	if found {
		for _, cond := range conditions {
			condMap, ok := cond.(map[string]interface{})
			if !ok {
				continue
			}
			condType, _ := condMap["type"].(string)
			condStatus, _ := condMap["status"].(string)

			if condType == "Failed" && condStatus == "True" {
				status.State = output.TrainingJobFailed
				if msg, ok := condMap["message"].(string); ok && msg != "" {
					status.Message = msg
				} else if reason, ok := condMap["reason"].(string); ok {
					status.Message = reason
				}
				return status
			}
		}
	}

	if failed > 0 {
		status.State = output.TrainingJobFailed
	}
	return status
}

func envVar(name, value string) map[string]interface{} {
	return map[string]interface{}{"name": name, "value": value}
}

// Ensure interface compliance
var _ output.TrainingOrchestrator = (*trainingOrchestrator)(nil)
