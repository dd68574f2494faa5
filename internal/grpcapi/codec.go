package grpcapi

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype of the Variates service.
const CodecName = "cbor"

// cborCodec implements gRPC's encoding.Codec interface.
type cborCodec struct{}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

func (cborCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(cborCodec{})
}
