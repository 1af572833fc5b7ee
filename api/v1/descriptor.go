package v1

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// FileName is the path the service descriptor is registered under.
const FileName = "rfm/insights/v1/insights.proto"

// File_rfm_insights_v1_insights_proto describes the Insights service for
// server reflection.
var File_rfm_insights_v1_insights_proto protoreflect.FileDescriptor

func method(name, in, out string) *descriptorpb.MethodDescriptorProto {
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(".google.protobuf." + in),
		OutputType: proto.String(".google.protobuf." + out),
	}
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(FileName),
		Package: proto.String("rfm.insights.v1"),
		Dependency: []string{
			"google/protobuf/empty.proto",
			"google/protobuf/struct.proto",
			"google/protobuf/wrappers.proto",
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String("Insights"),
			Method: []*descriptorpb.MethodDescriptorProto{
				method("GetKPIs", "Empty", "Struct"),
				method("ListQueries", "Empty", "ListValue"),
				method("RunQuery", "StringValue", "Struct"),
				method("GetSegments", "Empty", "Struct"),
				method("CheckAlerts", "Empty", "Struct"),
			},
		}},
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/godilite/rfm-insights/api/v1;v1"),
		},
		Syntax: proto.String("proto3"),
	}
}

func init() {
	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(err)
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(err)
	}
	File_rfm_insights_v1_insights_proto = fd
}
