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

var configFile = flag.String("f", "etc/mirror.yaml", "the config file")

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
	var c config.MirrorConfig
	if err := configloader.LoadConfig(*configFile, &c); err != nil {
		panic(fmt.Sprintf("配置加载失败: %v", err))
	}

	// 初始化 zap 日志
	logger.InitLogger(c.LogConf.ToLogOption())
	logx.SetWriter(logger.ZapWriter{})

	// 初始化依赖注入上下文
	svcCtx, err := svc.NewMirrorServiceContext(&c)
	if err != nil {
		panic(err)
	}
	defer svcCtx.Close()

	// 构建 Kafka 消费核心组件，订阅的 topic 来自回调路由表
	consumerRunner, err := service.NewConsumerRunner(
		c.KafkaConsumerConf.ToConsumerOption(svcCtx.Router.Topics()), svcCtx.Router)
	if err != nil {
		panic(err)
	}

	// 构造 go-zero ServiceGroup 管理服务
	sg := zerosvc.NewServiceGroup()
	sg.Add(service.NewRecoveryService(svcCtx.Recovery,
		time.Duration(c.RecoveryTickMs)*time.Millisecond))
	sg.Add(consumerRunner)
	sg.Add(server.NewMirrorServer(c.Server.Port, svcCtx.Ledger))

	if c.Monitor.Port > 0 {
		sg.Add(monitor.NewMonitorServer(c.Monitor.Port))
	}

	logger.Infof("镜像服务启动成功, source=%s, topics=%v", c.Source, svcCtx.Router.Topics())
	sg.Start()
}
