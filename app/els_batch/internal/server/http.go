package server

import (
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
)

// HealthMessage 健康检查返回的固定内容
const HealthMessage = "It's Working in els-batch"

// NewHTTPServer 创建只提供健康检查的 HTTP 服务
func NewHTTPServer(c config.ServerConfig) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}

	srv := http.NewServer(opts...)
	srv.HandleFunc("/health_check", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(HealthMessage))
	})
	return srv
}
