package v1

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	reflectionpb "google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

func TestServiceDescriptorMatchesServiceDesc(t *testing.T) {
	d, err := protoregistry.GlobalFiles.FindDescriptorByName(ServiceName)
	require.NoError(t, err)
	svc, ok := d.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	assert.Equal(t, FileName, svc.ParentFile().Path())

	require.Equal(t, len(Insights_ServiceDesc.Methods), svc.Methods().Len())
	for _, m := range Insights_ServiceDesc.Methods {
		t.Run(m.MethodName, func(t *testing.T) {
			md := svc.Methods().ByName(protoreflect.Name(m.MethodName))
			require.NotNil(t, md)
			assert.False(t, md.IsStreamingClient())
			assert.False(t, md.IsStreamingServer())
		})
	}

	run := svc.Methods().ByName("RunQuery")
	assert.Equal(t, protoreflect.FullName("google.protobuf.StringValue"), run.Input().FullName())
	list := svc.Methods().ByName("ListQueries")
	assert.Equal(t, protoreflect.FullName("google.protobuf.ListValue"), list.Output().FullName())
}

func TestReflectionDescribesService(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := grpc.NewServer()
	RegisterInsightsServer(s, UnimplementedInsightsServer{})
	reflection.Register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := reflectionpb.NewServerReflectionClient(conn).ServerReflectionInfo(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Send(&reflectionpb.ServerReflectionRequest{
		MessageRequest: &reflectionpb.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: ServiceName},
	}))
	resp, err := stream.Recv()
	require.NoError(t, err)
	require.Nil(t, resp.GetErrorResponse())

	var names []string
	for _, raw := range resp.GetFileDescriptorResponse().GetFileDescriptorProto() {
		fd := new(descriptorpb.FileDescriptorProto)
		require.NoError(t, proto.Unmarshal(raw, fd))
		names = append(names, fd.GetName())
		if fd.GetName() != FileName {
			continue
		}
		require.Len(t, fd.GetService(), 1)
		assert.Equal(t, "Insights", fd.GetService()[0].GetName())
		assert.Len(t, fd.GetService()[0].GetMethod(), 5)
	}
	assert.Contains(t, names, FileName)
}
