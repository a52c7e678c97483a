// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 flowgate 摄取服务程序入口。

# 概述

cmd/ingestor 是 flowgate 的可执行入口，将 spec.md 描述的全部模块组装为
一个运行进程：webhook 摄取 HTTP 服务、Job Runner 后台调度、Metrics 端口。
程序支持 YAML 配置文件加载、结构化日志（zap）、Prometheus 指标采集与
OpenTelemetry 链路追踪。配置在启动时一次性构建，运行期不支持热重载
（见 config.Config 的不可变性说明），因此没有教师框架中的配置管理 API。

# 核心类型

  - Server        — 主服务器，管理 HTTP、Metrics 双端口、Job Runner 生命周期
  - debugSource   — ingress.DebugSource 的具体实现，读 Event Store/Idempotency
    Guard/指标注册表中的队列深度
  - Middleware    — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddlewareAuto（按固定路由集记录请求指标）、OTelTracing
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 断路器状态轮询：每 5 秒将 CRM 客户端的熔断状态写入指标注册表
  - 优雅关闭：信号监听 → 取消 Job Runner → 关闭 Metrics → Wait → 关闭
    Redis 连接 → 关闭遥测 Provider
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
