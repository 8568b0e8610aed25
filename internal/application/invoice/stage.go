package invoice

import (
	"errors"
	"fmt"

	"github.com/invoicepdf/backend/internal/domain/invoice"
	"github.com/invoicepdf/backend/internal/domain/shared"
)

// Stage is a step of the invoice pipeline. A run moves forward through
// Start, FetchingData, Rendering, Rasterizing, Persisting and Responding,
// and ends in Responding or Failed. No stage is entered twice.
type Stage string

// Pipeline stages
const (
	StageStart        Stage = "start"
	StageFetchingData Stage = "fetching_data"
	StageRendering    Stage = "rendering"
	StageRasterizing  Stage = "rasterizing"
	StagePersisting   Stage = "persisting"
	StageResponding   Stage = "responding"
	StageFailed       Stage = "failed"
)

// StageError is the terminal failure of a pipeline run. Err is the
// originating component's error, usually a *shared.DomainError.
type StageError struct {
	Stage   Stage
	OrderID invoice.OrderID
	Err     error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("invoice %s: %s: %v", e.OrderID, e.Stage, e.Err)
}

// Unwrap returns the originating error
func (e *StageError) Unwrap() error {
	return e.Err
}

// Code returns the domain error code of the failure, or an empty string
// when the cause is not a domain error
func (e *StageError) Code() string {
	var domainErr *shared.DomainError
	if errors.As(e.Err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// FailedStage returns the stage a pipeline error originated in
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}
