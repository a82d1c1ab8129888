// Package wire describes the gRPC surface shared by the shopkeeper client and
// the hosted backend.
//
// Every method takes and returns a google.protobuf.Struct, so neither side
// needs generated stubs: the backend registers hand-built service
// descriptors (see ServiceDesc) and the client calls grpc.ClientConn.Invoke
// with the full method names below.
//
// Failures are gRPC status errors carrying a google.rpc.ErrorInfo detail.
// The detail's Reason is one of the Reason* constants and its Metadata holds
// structured values (for example the email of an unverified account), so
// clients never parse human-readable messages.
package wire
