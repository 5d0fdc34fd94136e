package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"llm-engine-service/internal/config"
)

const (
	labelFineTuneID     = "llm-engine.ai/fine-tune-id"
	labelEndpointID     = "llm-engine.ai/endpoint-id"
	labelBaseModel      = "llm-engine.ai/base-model"
	annotationOwner     = "llm-engine.ai/owner"
	annotationName      = "llm-engine.ai/endpoint-name"
	gpuResource         = "nvidia.com/gpu"
	acceleratorSelector = "k8s.amazonaws.com/accelerator"
)

// NewDynamicClient builds a dynamic client from in-cluster config, an explicit
// kubeconfig, or ~/.kube/config. It returns nil when integration is disabled.
func NewDynamicClient(cfg *config.KubernetesConfig) (dynamic.Interface, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		// Try default kubeconfig location
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}
	return client, nil
}

// labelsFor keeps only entries that are valid label values
func labelsFor(in map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if len(validation.IsQualifiedName(k)) == 0 && len(validation.IsValidLabelValue(v)) == 0 {
			out[k] = v
		}
	}
	return out
}
