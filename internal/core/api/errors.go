package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/solatis/conditions/internal/types"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
)

// Error domain reported in ErrorInfo details.
const errorDomain = "conditions"

// toStatus maps domain errors onto gRPC status codes.
// Invalid conditions map to INVALID_ARGUMENT with a BadRequest field violation.
// Evaluation failures map to FAILED_PRECONDITION with an ErrorInfo.
// Missing condition sets map to NOT_FOUND.
// Context timeouts map to DEADLINE_EXCEEDED.
// Everything else is treated as a storage failure and maps to UNAVAILABLE;
// the cause is logged, not returned.
func toStatus(log *slog.Logger, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	invalid, isInvalid := types.AsInvalidCondition(err)
	evalErr, isEval := types.AsEvaluationError(err)
	switch {
	case isInvalid:
		return withDetails(status.New(codes.InvalidArgument, err.Error()), &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{
				Field:       fieldPath(invalid),
				Description: err.Error(),
			}},
		})
	case isEval:
		return withDetails(status.New(codes.FailedPrecondition, err.Error()), &errdetails.ErrorInfo{
			Reason: "EVALUATION_FAILED",
			Domain: errorDomain,
			Metadata: map[string]string{
				"path":    evalErr.Path,
				"group":   evalErr.Group,
				"condstr": evalErr.Condstr,
				"key":     evalErr.Key,
				"detail":  evalErr.Detail,
			},
		})
	case errors.Is(err, types.ErrSetNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrInvalidSetName), errors.Is(err, types.ErrInvalidSetID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		log.Error("storage failure", slog.Any("error", err))
		return status.Error(codes.Unavailable, "condition set storage unavailable")
	}
}

// fieldPath joins the node path and offending field: "items[0].operand".
func fieldPath(e *types.InvalidConditionError) string {
	switch {
	case e.Path == "":
		return e.Field
	case e.Field == "":
		return e.Path
	default:
		return e.Path + "." + e.Field
	}
}

func withDetails(st *status.Status, detail protoadapt.MessageV1) error {
	if ds, err := st.WithDetails(detail); err == nil {
		return ds.Err()
	}
	return st.Err()
}
