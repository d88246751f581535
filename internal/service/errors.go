package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/session"
)

// Error metadata attached to every ledger error.
const (
	ErrorKindHeader    = "X-Ledger-Error-Kind"
	ErrorMessageHeader = "X-Ledger-Error-Message"
)

// toConnectError maps ledger errors onto connect codes and attaches the
// kind and message metadata. Connect errors keep their code; they gain the
// metadata when they wrap a ledger error.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		if e, ok := model.AsError(ce.Unwrap()); ok && ce.Meta().Get(ErrorKindHeader) == "" {
			setErrorMeta(ce, e)
		}
		return err
	}

	e, ok := model.AsError(err)
	if !ok {
		return connect.NewError(connect.CodeInternal, err)
	}

	cerr := connect.NewError(codeFor(e.Kind), err)
	setErrorMeta(cerr, e)
	return cerr
}

func setErrorMeta(ce *connect.Error, e *model.Error) {
	ce.Meta().Set(ErrorKindHeader, string(e.Kind))
	ce.Meta().Set(ErrorMessageHeader, e.Message())
}

// errorMetadataInterceptor runs outside every other handler interceptor so
// errors raised before a handler, such as a rejected token, carry the same
// metadata as handler errors.
type errorMetadataInterceptor struct{}

func (errorMetadataInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		resp, err := next(ctx, req)
		if err != nil && !req.Spec().IsClient {
			return resp, toConnectError(err)
		}
		return resp, err
	}
}

func (errorMetadataInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (errorMetadataInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return toConnectError(next(ctx, conn))
	}
}

func codeFor(kind model.ErrorKind) connect.Code {
	switch kind {
	case model.KindBudgetExceeded, model.KindInsufficientPoints:
		return connect.CodeFailedPrecondition
	case model.KindInvalidTransaction:
		return connect.CodeInvalidArgument
	case model.KindNoActiveSession:
		return connect.CodeUnauthenticated
	case model.KindPersistence:
		return connect.CodeUnavailable
	}
	return connect.CodeInternal
}

// ErrorKindOf reads the ledger error kind from an error returned by a
// client call.
func ErrorKindOf(err error) model.ErrorKind {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return model.KindOf(err)
	}
	if k := ce.Meta().Get(ErrorKindHeader); k != "" {
		return model.ErrorKind(k)
	}
	return model.KindOf(ce.Unwrap())
}

// ErrorMessageOf returns the user-facing text of a ledger error returned by
// a client call, or "" when there is none.
func ErrorMessageOf(err error) string {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce.Meta().Get(ErrorMessageHeader)
	}
	if e, ok := model.AsError(err); ok {
		return e.Message()
	}
	return ""
}

func errorView(err error) *session.ErrorView {
	if e, ok := model.AsError(err); ok {
		return &session.ErrorView{Kind: e.Kind, Message: e.Message()}
	}
	return &session.ErrorView{Kind: model.KindPersistence, Message: err.Error()}
}
