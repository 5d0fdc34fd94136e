package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Value Objects
// ============================================================================

// FineTuneStatus represents the lifecycle state of a fine-tune job
type FineTuneStatus string

const (
	FineTuneStatusPending   FineTuneStatus = "PENDING"
	FineTuneStatusRunning   FineTuneStatus = "RUNNING"
	FineTuneStatusSuccess   FineTuneStatus = "SUCCESS"
	FineTuneStatusFailure   FineTuneStatus = "FAILURE"
	FineTuneStatusCancelled FineTuneStatus = "CANCELLED"
)

// IsValid checks if the status is known
func (s FineTuneStatus) IsValid() bool {
	switch s {
	case FineTuneStatusPending, FineTuneStatusRunning, FineTuneStatusSuccess,
		FineTuneStatusFailure, FineTuneStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true once the job can no longer change
func (s FineTuneStatus) IsTerminal() bool {
	return s == FineTuneStatusSuccess || s == FineTuneStatusFailure || s == FineTuneStatusCancelled
}

var fineTuneTransitions = map[FineTuneStatus][]FineTuneStatus{
	FineTuneStatusPending: {FineTuneStatusRunning, FineTuneStatusFailure, FineTuneStatusCancelled},
	FineTuneStatusRunning: {FineTuneStatusSuccess, FineTuneStatusFailure, FineTuneStatusCancelled},
}

// CanTransitionTo reports whether next is reachable from s
func (s FineTuneStatus) CanTransitionTo(next FineTuneStatus) bool {
	for _, allowed := range fineTuneTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var suffixPattern = regexp.MustCompile(`^[a-z0-9-]{1,28}$`)

// ValidateSuffix checks the optional fine-tuned model name suffix
func ValidateSuffix(suffix string) error {
	if suffix == "" {
		return nil
	}
	if !suffixPattern.MatchString(suffix) {
		return ErrInvalidSuffix
	}
	return nil
}

// Supported dataset location schemes. Object store locations are accepted as-is,
// http(s) locations are fetched and checked.
var supportedFileSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"s3":    true,
	"gs":    true,
}

// ValidateFileLocation checks that a dataset location is an absolute URL the
// training job can read.
func ValidateFileLocation(location string) error {
	if strings.TrimSpace(location) == "" {
		return ErrMissingTrainingFile
	}
	u, err := url.Parse(location)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFileLocation, err)
	}
	if !supportedFileSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidFileLocation, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host or bucket", ErrInvalidFileLocation)
	}
	return nil
}

// IsRemoteFetchable returns true for locations that can be fetched over plain HTTP
func IsRemoteFetchable(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// FineTunedModelName builds the name of the model produced by a fine-tune:
// <base>[.<suffix>].<YYMMDD-HHMMSS>
func FineTunedModelName(baseModel, suffix string, at time.Time) string {
	stamp := at.UTC().Format("060102-150405")
	if suffix == "" {
		return fmt.Sprintf("%s.%s", baseModel, stamp)
	}
	return fmt.Sprintf("%s.%s.%s", baseModel, suffix, stamp)
}

// ============================================================================
// Entities
// ============================================================================

// FineTune represents a request to adapt a base model on a prompt/response dataset
type FineTune struct {
	ID              string         `json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	Owner           string         `json:"owner"`
	BaseModel       string         `json:"base_model"`
	TrainingFile    string         `json:"training_file"`
	ValidationFile  string         `json:"validation_file,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters"`
	Suffix          string         `json:"suffix,omitempty"`
	Status          FineTuneStatus `json:"status"`
	FineTunedModel  string         `json:"fine_tuned_model,omitempty"`
	ExternalID      string         `json:"external_id,omitempty"` // K8s Job name
	LastError       string         `json:"last_error,omitempty"`
	Attempts        int            `json:"attempts"`
	ModelRegistered bool           `json:"model_registered"`
}

// NewFineTuneID returns a fresh fine-tune ID that is also a valid K8s resource name
func NewFineTuneID() string {
	return "ft-" + uuid.New().String()
}

// NewFineTune creates a new pending FineTune with validation
func NewFineTune(
	owner, baseModel, trainingFile, validationFile string,
	hyperparameters map[string]any,
	suffix string,
) (*FineTune, error) {
	if owner == "" {
		return nil, ErrMissingOwner
	}
	if baseModel == "" {
		return nil, ErrInvalidBaseModel
	}
	if trainingFile == "" {
		return nil, ErrMissingTrainingFile
	}
	if err := ValidateSuffix(suffix); err != nil {
		return nil, err
	}
	if hyperparameters == nil {
		hyperparameters = make(map[string]any)
	}

	now := time.Now()
	return &FineTune{
		ID:              NewFineTuneID(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Owner:           owner,
		BaseModel:       baseModel,
		TrainingFile:    trainingFile,
		ValidationFile:  validationFile,
		Hyperparameters: hyperparameters,
		Suffix:          suffix,
		Status:          FineTuneStatusPending,
	}, nil
}

// TransitionTo moves the job to next, stamping CompletedAt on terminal states
func (f *FineTune) TransitionTo(next FineTuneStatus) error {
	if !f.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, f.Status, next)
	}
	now := time.Now()
	f.Status = next
	f.UpdatedAt = now
	if next.IsTerminal() {
		f.CompletedAt = &now
	}
	return nil
}

// MarkRunning records a successful launch
func (f *FineTune) MarkRunning(externalID string) error {
	if err := f.TransitionTo(FineTuneStatusRunning); err != nil {
		return err
	}
	f.ExternalID = externalID
	f.LastError = ""
	return nil
}

// MarkSucceeded records completion and names the resulting model
func (f *FineTune) MarkSucceeded() error {
	if err := f.TransitionTo(FineTuneStatusSuccess); err != nil {
		return err
	}
	f.FineTunedModel = FineTunedModelName(f.BaseModel, f.Suffix, *f.CompletedAt)
	f.LastError = ""
	return nil
}

// MarkFailed records a terminal failure
func (f *FineTune) MarkFailed(msg string) error {
	if err := f.TransitionTo(FineTuneStatusFailure); err != nil {
		return err
	}
	f.LastError = msg
	return nil
}

// Cancel stops a job that has not finished
func (f *FineTune) Cancel() error {
	if f.Status.IsTerminal() {
		return ErrFineTuneTerminal
	}
	return f.TransitionTo(FineTuneStatusCancelled)
}

// RecordLaunchError counts a failed launch attempt without changing status
func (f *FineTune) RecordLaunchError(msg string) {
	f.Attempts++
	f.LastError = msg
	f.UpdatedAt = time.Now()
}

// MarkModelRegistered records that the fine-tuned model has a serving endpoint
func (f *FineTune) MarkModelRegistered() {
	f.ModelRegistered = true
	f.UpdatedAt = time.Now()
}

// NeedsRegistration returns true for a successful job whose model has no endpoint yet
func (f *FineTune) NeedsRegistration() bool {
	return f.Status == FineTuneStatusSuccess && !f.ModelRegistered
}

// IsLaunched returns true when a K8s Job has been submitted
func (f *FineTune) IsLaunched() bool {
	return f.ExternalID != ""
}
