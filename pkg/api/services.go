package api

import (
	"context"

	"github.com/cuemby/googol/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Service names
const (
	DirectoryServiceName  = "googol.Directory"
	QueueServiceName      = "googol.Queue"
	BarrelServiceName     = "googol.Barrel"
	DownloaderServiceName = "googol.Downloader"
	GatewayServiceName    = "googol.Gateway"
	StopWordsServiceName  = "googol.StopWords"
)

// Full method names, as passed to grpc.ClientConn.Invoke
const (
	MethodRegister   = "/" + DirectoryServiceName + "/Register"
	MethodUnregister = "/" + DirectoryServiceName + "/Unregister"
	MethodResolve    = "/" + DirectoryServiceName + "/Resolve"
	MethodList       = "/" + DirectoryServiceName + "/List"

	MethodAddURL                    = "/" + QueueServiceName + "/AddURL"
	MethodAddURLs                   = "/" + QueueServiceName + "/AddURLs"
	MethodGetQueueSize              = "/" + QueueServiceName + "/GetQueueSize"
	MethodRegisterDownloader        = "/" + QueueServiceName + "/RegisterDownloader"
	MethodNotifyDownloaderAvailable = "/" + QueueServiceName + "/NotifyDownloaderAvailable"

	MethodStorePage           = "/" + BarrelServiceName + "/StorePage"
	MethodBarrelSearch        = "/" + BarrelServiceName + "/Search"
	MethodIsURLInBarrel       = "/" + BarrelServiceName + "/IsURLInBarrel"
	MethodBarrelIncomingLinks = "/" + BarrelServiceName + "/GetIncomingLinks"
	MethodGetInvertedIndex    = "/" + BarrelServiceName + "/GetInvertedIndex"
	MethodGetIncomingLinksMap = "/" + BarrelServiceName + "/GetIncomingLinksMap"
	MethodGetPageMetadata     = "/" + BarrelServiceName + "/GetPageMetadata"
	MethodGetName             = "/" + BarrelServiceName + "/GetName"
	MethodIsActive            = "/" + BarrelServiceName + "/IsActive"
	MethodGetIndexSize        = "/" + BarrelServiceName + "/GetIndexSize"

	MethodTakeURL        = "/" + DownloaderServiceName + "/TakeURL"
	MethodNotifyFinished = "/" + DownloaderServiceName + "/NotifyFinished"
	MethodAddBarrel      = "/" + DownloaderServiceName + "/AddBarrel"

	MethodIndexURL              = "/" + GatewayServiceName + "/IndexURL"
	MethodGatewaySearch         = "/" + GatewayServiceName + "/Search"
	MethodGatewayIncomingLinks  = "/" + GatewayServiceName + "/GetIncomingLinks"
	MethodRegisterBarrel        = "/" + GatewayServiceName + "/RegisterBarrel"
	MethodUpdateBarrelIndexSize = "/" + GatewayServiceName + "/UpdateBarrelIndexSize"
	MethodSubscribe             = "/" + GatewayServiceName + "/Subscribe"
	MethodUnsubscribe           = "/" + GatewayServiceName + "/Unsubscribe"

	MethodProcessDoc   = "/" + StopWordsServiceName + "/ProcessDoc"
	MethodGetStopWords = "/" + StopWordsServiceName + "/GetStopWords"
)

// SubscriptionIDHeader carries the subscription id of a Subscribe stream
const SubscriptionIDHeader = "subscription-id"

// SubscribeStreamDesc describes the server-streaming Subscribe call
var SubscribeStreamDesc = grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

var empty = &emptypb.Empty{}

// method builds a unary method descriptor around fn
func method[Req any, Resp any](service, name string, fn func(ctx context.Context, req *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
				return fn(ctx, r.(*Req))
			})
		},
	}
}

func directoryDesc(svc types.DirectoryService) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: DirectoryServiceName,
		HandlerType: (*types.DirectoryService)(nil),
		Methods: []grpc.MethodDesc{
			method(DirectoryServiceName, "Register", func(ctx context.Context, req *RegisterRequest) (*emptypb.Empty, error) {
				return empty, svc.Register(ctx, req.Name, req.Handle)
			}),
			method(DirectoryServiceName, "Unregister", func(ctx context.Context, req *NameRequest) (*emptypb.Empty, error) {
				return empty, svc.Unregister(ctx, req.Name)
			}),
			method(DirectoryServiceName, "Resolve", func(ctx context.Context, req *NameRequest) (*HandleResponse, error) {
				h, err := svc.Resolve(ctx, req.Name)
				return &HandleResponse{Handle: h}, err
			}),
			method(DirectoryServiceName, "List", func(ctx context.Context, req *ListRequest) (*ListResponse, error) {
				names, err := svc.List(ctx, req.Prefix)
				return &ListResponse{Names: names}, err
			}),
		},
	}
}

func queueDesc(svc types.QueueService) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: QueueServiceName,
		HandlerType: (*types.QueueService)(nil),
		Methods: []grpc.MethodDesc{
			method(QueueServiceName, "AddURL", func(ctx context.Context, req *URLRequest) (*emptypb.Empty, error) {
				return empty, svc.AddURL(ctx, req.URL)
			}),
			method(QueueServiceName, "AddURLs", func(ctx context.Context, req *URLsRequest) (*emptypb.Empty, error) {
				return empty, svc.AddURLs(ctx, req.URLs)
			}),
			method(QueueServiceName, "GetQueueSize", func(ctx context.Context, _ *emptypb.Empty) (*SizeResponse, error) {
				n, err := svc.GetQueueSize(ctx)
				return &SizeResponse{Size: n}, err
			}),
			method(QueueServiceName, "RegisterDownloader", func(ctx context.Context, req *RegisterDownloaderRequest) (*emptypb.Empty, error) {
				return empty, svc.RegisterDownloader(ctx, req.Handle, req.ID)
			}),
			method(QueueServiceName, "NotifyDownloaderAvailable", func(ctx context.Context, req *HandleRequest) (*emptypb.Empty, error) {
				return empty, svc.NotifyDownloaderAvailable(ctx, req.Handle)
			}),
		},
	}
}

func barrelDesc(svc types.BarrelService) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: BarrelServiceName,
		HandlerType: (*types.BarrelService)(nil),
		Methods: []grpc.MethodDesc{
			method(BarrelServiceName, "StorePage", func(ctx context.Context, req *StorePageRequest) (*emptypb.Empty, error) {
				return empty, svc.StorePage(ctx, req.Page)
			}),
			method(BarrelServiceName, "Search", func(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
				results, err := svc.Search(ctx, req.Terms)
				return &SearchResponse{Results: results}, err
			}),
			method(BarrelServiceName, "IsURLInBarrel", func(ctx context.Context, req *URLRequest) (*BoolResponse, error) {
				ok, err := svc.IsURLInBarrel(ctx, req.URL)
				return &BoolResponse{Value: ok}, err
			}),
			method(BarrelServiceName, "GetIncomingLinks", func(ctx context.Context, req *URLRequest) (*LinksResponse, error) {
				links, err := svc.GetIncomingLinks(ctx, req.URL)
				return &LinksResponse{Links: links}, err
			}),
			method(BarrelServiceName, "GetInvertedIndex", func(ctx context.Context, _ *emptypb.Empty) (*IndexSnapshot, error) {
				m, err := svc.GetInvertedIndex(ctx)
				return &IndexSnapshot{Entries: m}, err
			}),
			method(BarrelServiceName, "GetIncomingLinksMap", func(ctx context.Context, _ *emptypb.Empty) (*IndexSnapshot, error) {
				m, err := svc.GetIncomingLinksMap(ctx)
				return &IndexSnapshot{Entries: m}, err
			}),
			method(BarrelServiceName, "GetPageMetadata", func(ctx context.Context, _ *emptypb.Empty) (*MetadataSnapshot, error) {
				m, err := svc.GetPageMetadata(ctx)
				return &MetadataSnapshot{Pages: m}, err
			}),
			method(BarrelServiceName, "GetName", func(ctx context.Context, _ *emptypb.Empty) (*NameResponse, error) {
				name, err := svc.GetName(ctx)
				return &NameResponse{Name: name}, err
			}),
			method(BarrelServiceName, "IsActive", func(ctx context.Context, _ *emptypb.Empty) (*BoolResponse, error) {
				ok, err := svc.IsActive(ctx)
				return &BoolResponse{Value: ok}, err
			}),
			method(BarrelServiceName, "GetIndexSize", func(ctx context.Context, _ *emptypb.Empty) (*SizeResponse, error) {
				n, err := svc.GetIndexSize(ctx)
				return &SizeResponse{Size: n}, err
			}),
		},
	}
}

func downloaderDesc(svc types.DownloaderService) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: DownloaderServiceName,
		HandlerType: (*types.DownloaderService)(nil),
		Methods: []grpc.MethodDesc{
			method(DownloaderServiceName, "TakeURL", func(ctx context.Context, req *URLRequest) (*emptypb.Empty, error) {
				return empty, svc.TakeURL(ctx, req.URL)
			}),
			method(DownloaderServiceName, "NotifyFinished", func(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
				return empty, svc.NotifyFinished(ctx)
			}),
			method(DownloaderServiceName, "AddBarrel", func(ctx context.Context, req *HandleRequest) (*emptypb.Empty, error) {
				return empty, svc.AddBarrel(ctx, req.Handle)
			}),
		},
	}
}

func stopWordsDesc(svc types.StopWordsService) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: StopWordsServiceName,
		HandlerType: (*types.StopWordsService)(nil),
		Methods: []grpc.MethodDesc{
			method(StopWordsServiceName, "ProcessDoc", func(ctx context.Context, req *ProcessDocRequest) (*emptypb.Empty, error) {
				return empty, svc.ProcessDoc(ctx, req.URL, req.Words)
			}),
			method(StopWordsServiceName, "GetStopWords", func(ctx context.Context, _ *emptypb.Empty) (*WordsResponse, error) {
				words, err := svc.GetStopWords(ctx)
				return &WordsResponse{Words: words}, err
			}),
		},
	}
}
