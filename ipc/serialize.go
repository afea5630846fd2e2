package ipc

import "github.com/robo-monk/ipcd/transport"

// CheckSerializable reports why candidate cannot be encoded under mode, or
// nil if it can. No daemon is involved.
func CheckSerializable(mode SerializationMode, candidate any) error {
	if err := transport.CanEncode(mode, candidate); err != nil {
		return &Error{Kind: KindSerialization, Op: "serialize", Cause: err}
	}
	return nil
}

// CanSerialize is the boolean form of CheckSerializable.
func CanSerialize(mode SerializationMode, candidate any) bool {
	return CheckSerializable(mode, candidate) == nil
}
