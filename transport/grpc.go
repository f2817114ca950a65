package transport

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kzs0/callspan/intercept"
	tracegrpc "github.com/kzs0/callspan/trace/grpc"
)

// GRPCStatusTag holds the status code name of a failed RPC.
const GRPCStatusTag = "rpc.grpc.status_code"

// UnaryClientInterceptor wraps unary RPCs in client spans. The span is named
// grpc:/<service>/<method> and its identity travels in the outgoing metadata.
//
//	conn, err := grpc.NewClient(target,
//	    grpc.WithUnaryInterceptor(transport.UnaryClientInterceptor(i)),
//	)
func UnaryClientInterceptor(i *intercept.Interceptor) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) (err error) {
		if i == nil {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		// Outgoing metadata may be shared with other calls.
		md, _ := metadata.FromOutgoingContext(ctx)
		md = md.Copy()

		endpoint := ""
		if cc != nil {
			endpoint = targetEndpoint(cc.Target())
		}

		spanCtx, guard := i.Start(ctx, intercept.Call{
			URL:     &url.URL{Scheme: "grpc", Path: method},
			RawURL:  "grpc://" + endpoint + method,
			Host:    endpoint,
			Method:  "POST",
			Headers: md,
			Carrier: tracegrpc.MetadataCarrier(md),
		})
		defer func() {
			if r := recover(); r != nil {
				guard.Finish(fmt.Errorf("transport: panic: %v", r))
				panic(r)
			}
			guard.Finish(err)
		}()

		err = invoker(metadata.NewOutgoingContext(spanCtx, md), method, req, reply, cc, opts...)
		if code := status.Code(err); code != codes.OK {
			guard.Tag(GRPCStatusTag, code.String())
		}
		return err
	}
}

// targetEndpoint extracts the endpoint from a gRPC dial target such as
// "dns:///localhost:50051", "dns://8.8.8.8/svc:443" or a bare "host:port".
func targetEndpoint(target string) string {
	if !strings.Contains(target, "://") {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	if ep := strings.TrimPrefix(u.Path, "/"); ep != "" {
		return ep
	}
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Host
}
