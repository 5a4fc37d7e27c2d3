package wire

import "google.golang.org/grpc/encoding"

// CodecName is the content-subtype advertised on the wire; it shows up
// in the request's "application/grpc+<subtype>" content-type header.
const CodecName = "msgpack"

// grpcCodec adapts our MsgPack Encode/Decode helpers to grpc's
// encoding.Codec interface so grpc.ClientConn.Invoke and a hand-rolled
// grpc.ServiceDesc can move plain Go structs over the wire without a
// protoc-generated protobuf codec.
type grpcCodec struct{}

func (grpcCodec) Marshal(v interface{}) ([]byte, error) {
	return Encode(v)
}

func (grpcCodec) Unmarshal(data []byte, v interface{}) error {
	return Decode(data, v)
}

func (grpcCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(grpcCodec{})
}
