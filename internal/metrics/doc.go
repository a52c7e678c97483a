// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的摄取管道指标采集能力，覆盖
入站 HTTP、事件接收、Job Runner 调度与出站依赖调用四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
供 /metrics 端点抓取。§6 的 /debug/status 快照直接通过 QueueDepth
从同一个 Registry 读回队列深度 Gauge，而不是另外维护一份计数器。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - 入站 HTTP 指标：请求总数、请求耗时，按 route/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 事件接收指标：接受入 staging 与拒绝的事件计数，按 source 分组。
  - Job Runner 指标：调度结果计数、重试耗尽计数、处理耗时，
    按 source/event_type/kind 分组；队列深度 Gauge 按
    ready/processing/delayed/failed 分组。
  - 出站依赖指标：CRM/LLM 调用计数与耗时、断路器状态 Gauge，
    按 dependency 分组。
  - 通知器失败计数。
*/
package metrics
