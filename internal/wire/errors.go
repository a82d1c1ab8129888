package wire

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error builds a status error with an ErrorInfo detail. If the detail cannot
// be attached the plain status is returned.
func Error(code codes.Code, reason, msg string, metadata map[string]string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: metadata,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// Failure is a decoded status error.
type Failure struct {
	Code     codes.Code
	Reason   string
	Metadata map[string]string
	Message  string
}

// Decode extracts code, reason and metadata from err. ok is false when err
// is not a gRPC status error.
func Decode(err error) (f Failure, ok bool) {
	st, ok := status.FromError(err)
	if !ok {
		return Failure{}, false
	}
	f = Failure{Code: st.Code(), Message: st.Message()}
	for _, d := range st.Details() {
		if info, isInfo := d.(*errdetails.ErrorInfo); isInfo {
			f.Reason = info.GetReason()
			f.Metadata = info.GetMetadata()
			break
		}
	}
	return f, true
}
