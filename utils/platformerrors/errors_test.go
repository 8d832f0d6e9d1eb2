package platformerrors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"adscope/utils/platformerrors"
)

func TestAsErrorPreservesClassification(t *testing.T) {
	ctx := context.Background()

	inner := platformerrors.NewError(ctx, platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError, "query failed", errors.New("locked"))
	wrapped := fmt.Errorf("loading asset: %w", inner)

	outer := platformerrors.AsError(ctx, platformerrors.LayerDomain, wrapped, "lookup failed")
	if outer.Type != platformerrors.ErrorTypeDatabaseError {
		t.Fatalf("type=%s, want DATABASE_ERROR preserved", outer.Type)
	}
	if outer.UUID != inner.UUID {
		t.Fatal("UUID should carry through wrapping")
	}
}

func TestTypeOf(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want platformerrors.ErrorType
	}{
		{
			"platform error",
			platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "bad input", nil),
			platformerrors.ErrorTypeValidation,
		},
		{
			"wrapped platform error",
			fmt.Errorf("context: %w", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeFetchFailed, "dl", nil)),
			platformerrors.ErrorTypeFetchFailed,
		},
		{"plain error", errors.New("boom"), platformerrors.ErrorTypeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := platformerrors.TypeOf(tc.err); got != tc.want {
				t.Errorf("TypeOf()=%s, want %s", got, tc.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		errorType platformerrors.ErrorType
		want      bool
	}{
		{platformerrors.ErrorTypeFetchFailed, true},
		{platformerrors.ErrorTypeAnalysisFailed, true},
		{platformerrors.ErrorTypeExternal, true},
		{platformerrors.ErrorTypeValidation, false},
		{platformerrors.ErrorTypeAnalysisUnavailable, false},
		{platformerrors.ErrorTypeCacheCorruption, false},
	}
	for _, tc := range tests {
		err := platformerrors.NewError(ctx, platformerrors.LayerDomain, tc.errorType, "x", nil)
		if got := platformerrors.Retryable(err); got != tc.want {
			t.Errorf("Retryable(%s)=%v, want %v", tc.errorType, got, tc.want)
		}
	}
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType platformerrors.ErrorType
		want      int
	}{
		{platformerrors.ErrorTypeValidation, 400},
		{platformerrors.ErrorTypeNotFound, 404},
		{platformerrors.ErrorTypeAnalysisUnavailable, 503},
		{platformerrors.ErrorTypeFetchFailed, 502},
		{platformerrors.ErrorTypeAnalysisFailed, 502},
		{platformerrors.ErrorTypeDatabaseError, 500},
		{platformerrors.ErrorTypeInternal, 500},
	}
	for _, tc := range tests {
		if got := platformerrors.ErrorTypeToHTTPStatus(tc.errorType); got != tc.want {
			t.Errorf("status(%s)=%d, want %d", tc.errorType, got, tc.want)
		}
	}
}
