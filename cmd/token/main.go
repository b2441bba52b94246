package main

import (
	"flag"
	"fmt"
	"runtime/debug"
	"time"

	"currency-ledger/internal/config"
	"currency-ledger/internal/pkg/configloader"
	"currency-ledger/internal/pkg/monitor"
	"currency-ledger/internal/server"
	"currency-ledger/internal/service"
	"currency-ledger/internal/svc"
	"currency-ledger/pkg/logger"

	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/token.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()
	defer logger.Sync()

	flag.Parse()
	logger.Infof("Loading config from %s", *configFile)

	// 加载配置
	var c config.TokenConfig
	if err := configloader.LoadConfig(*configFile, &c); err != nil {
		panic(fmt.Sprintf("配置加载失败: %v", err))
	}

	// 初始化 zap 日志
	logger.InitLogger(c.LogConf.ToLogOption())
	logx.SetWriter(logger.ZapWriter{})

	// 初始化依赖注入上下文
	svcCtx, err := svc.NewTokenServiceContext(&c)
	if err != nil {
		panic(err)
	}
	defer svcCtx.Close()

	// 构造 go-zero ServiceGroup 管理服务
	sg := zerosvc.NewServiceGroup()
	sg.Add(service.NewFlushService(svcCtx.Emitter,
		time.Duration(c.EmitterConf.FlushIntervalMs)*time.Millisecond))
	sg.Add(server.NewTokenServer(c.Server.Port, svcCtx.Token, svcCtx.Registry, svcCtx.Emitter))

	if c.Monitor.Port > 0 {
		sg.Add(monitor.NewMonitorServer(c.Monitor.Port))
	}

	logger.Infof("账本服务启动成功, symbol=%s, port=%d", c.Token.Symbol, c.Server.Port)
	sg.Start()
}
