// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MDIP Contributors

package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/mdip/authd/internal/auth"
)

// Unknown usernames and wrong passwords share one message so callers cannot
// probe for registered accounts.
const msgBadCredentials = "invalid username or password"

// toStatus maps a Service error onto a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, "request cancelled")
	}

	switch auth.KindOf(err) {
	case auth.KindValidation:
		field, reason, _ := auth.ValidationField(err)
		return withDetails(status.New(codes.InvalidArgument, reason), &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: field, Description: reason}},
		})
	case auth.KindAlreadyExists:
		return status.Error(codes.AlreadyExists, "username already exists")
	case auth.KindUserNotFound, auth.KindInvalidCredentials:
		return status.Error(codes.Unauthenticated, msgBadCredentials)
	case auth.KindAccountLocked:
		retryAfter, _ := auth.RetryAfter(err)
		msg := fmt.Sprintf("account locked, retry after %s", retryAfter.Round(time.Second))
		return withDetails(status.New(codes.ResourceExhausted, msg), &errdetails.RetryInfo{
			RetryDelay: durationpb.New(retryAfter),
		})
	case auth.KindStorage:
		if errors.Is(err, context.DeadlineExceeded) {
			return status.Error(codes.DeadlineExceeded, "storage timed out")
		}
		return status.Error(codes.Unavailable, "storage unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func withDetails(st *status.Status, details ...protoadapt.MessageV1) error {
	detailed, err := st.WithDetails(details...)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// fromStatus converts a status returned by the server back into an error
// that matches the auth sentinels, so callers classify remote and local
// failures the same way.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var base error
	builder := oops.With("grpc_code", st.Code().String())
	switch st.Code() {
	case codes.InvalidArgument:
		for _, d := range st.Details() {
			if br, ok := d.(*errdetails.BadRequest); ok && len(br.GetFieldViolations()) > 0 {
				v := br.GetFieldViolations()[0]
				return oops.With("grpc_code", st.Code().String()).Wrap(auth.ValidationError(v.GetField(), v.GetDescription()))
			}
		}
		base = auth.ErrValidation
	case codes.AlreadyExists:
		base = auth.ErrAlreadyExists
	case codes.Unauthenticated:
		base = auth.ErrInvalidCredentials
	case codes.ResourceExhausted:
		base = auth.ErrAccountLocked
		for _, d := range st.Details() {
			if ri, ok := d.(*errdetails.RetryInfo); ok {
				builder = builder.With("retry_after", ri.GetRetryDelay().AsDuration())
			}
		}
	case codes.Unavailable, codes.DeadlineExceeded:
		base = auth.ErrStorage
	default:
		return oops.Code("RPC_FAILED").With("grpc_code", st.Code().String()).Wrap(err)
	}
	return builder.Wrapf(base, "%s", st.Message())
}
