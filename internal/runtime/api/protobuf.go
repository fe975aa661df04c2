package api

import (
	"net/http"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/drblury/flowmgmt/internal/runtime/jsoncodec"
)

// toStruct goes through JSON so attribute values of any type end up as
// protobuf values the same way they render in the JSON binding.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := jsoncodec.Marshal(v)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Server) writeProtobuf(w http.ResponseWriter, v any) {
	st, err := toStruct(v)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := proto.Marshal(st)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeProtobuf)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write protobuf response", err, nil)
	}
}
