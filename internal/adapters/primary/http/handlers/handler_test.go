package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"llm-engine-service/internal/core/domain"
	"llm-engine-service/internal/core/services"
	"llm-engine-service/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testDeps struct {
	fineTunes *testutil.MockFineTuneRepo
	endpoints *testutil.MockModelEndpointRepo
	catalog   *testutil.MockCatalog
	datasets  *testutil.MockDatasetValidator
	queue     *testutil.MockJobQueue
	training  *testutil.MockTrainingOrchestrator
	serving   *testutil.MockServingOrchestrator
	inference *testutil.MockInferenceClient
}

func setupRouter() (*testDeps, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	d := &testDeps{
		fineTunes: new(testutil.MockFineTuneRepo),
		endpoints: new(testutil.MockModelEndpointRepo),
		catalog:   new(testutil.MockCatalog),
		datasets:  new(testutil.MockDatasetValidator),
		queue:     new(testutil.MockJobQueue),
		training:  new(testutil.MockTrainingOrchestrator),
		serving:   new(testutil.MockServingOrchestrator),
		inference: new(testutil.MockInferenceClient),
	}

	endpointSvc := services.NewModelEndpointService(d.endpoints, d.catalog, d.serving)
	fineTuneSvc := services.NewFineTuneService(d.fineTunes, d.catalog, d.datasets, d.queue, d.training, endpointSvc, services.FineTuneOptions{})
	completionSvc := services.NewCompletionService(endpointSvc, d.inference)

	h := New(fineTuneSvc, endpointSvc, completionSvc)
	r := gin.New()
	api := r.Group("/v1/llm")
	h.RegisterRoutes(api)

	return d, r
}

// do sends an authenticated request as owner; an empty owner sends none
func do(r *gin.Engine, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.SetBasicAuth(owner, "")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func llama7b() *domain.BaseModel {
	return &domain.BaseModel{
		Name:                   "llama-2-7b",
		HuggingFaceRepo:        "meta-llama/Llama-2-7b-hf",
		FineTunable:            true,
		FineTuneImage:          "registry.local/fine-tune",
		FineTuneImageTag:       "llama-2",
		GPUs:                   1,
		NumShards:              1,
		DefaultHyperparameters: map[string]any{"epochs": 1},
	}
}

func readyEndpoint(t *testing.T, owner, name string) *domain.ModelEndpoint {
	t.Helper()
	e, err := domain.NewModelEndpoint(owner, name, "llama-2-7b")
	require.NoError(t, err)
	e.MarkDeploying("uid-1")
	e.MarkReady("http://" + name + ".llm-serving.example.com")
	return e
}
