/*
 * Copyright 2022 Xiongfa Li.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package appcontext

import (
	"context"
	"time"
)

type ApplicationEvent interface {
	// 事件发生的时间
	OccurredTime() time.Time
}

type EventContextHolder interface {
	GetEventContext() context.Context
}

type ApplicationEventPublisher interface {
	// 异步发送事件，队列满时返回错误
	PublishEvent(e ApplicationEvent) error

	// 异步发送事件，队列满时阻塞直到ctx结束
	PostEvent(ctx context.Context, e ApplicationEvent) error
}

type ApplicationEventListener interface {
	// 默认事件监听器接口
	// 监听器应尽快处理事件，耗时操作请使用协程
	OnApplicationEvent(e ApplicationEvent)
}

type ApplicationEventConsumerRegistry interface {
	// consumer: ApplicationEvent消费方法，类型func(ApplicationEvent)
	RegisterApplicationEventConsumer(consumer interface{}) error
}

type ApplicationEventConsumerListener interface {
	ApplicationEventListener
	ApplicationEventConsumerRegistry
}

type ApplicationEventConsumer interface {
	// 获得ApplicationEvent消费方法，类型func(ApplicationEvent)
	// 方法应尽快处理事件，耗时操作请使用协程
	RegisterConsumer(registry ApplicationEventConsumerRegistry) error
}

type ApplicationEventHandler interface {
	// 增加事件监听器，参数为ApplicationEventListener、ApplicationEventConsumer或func(E)，E实现ApplicationEvent
	// 监听器应尽快处理事件，耗时操作请使用协程
	AddListeners(listeners ...interface{})
}

type BaseApplicationEvent struct {
	timestamp time.Time
	ctx       context.Context
}

func NewBaseApplicationEvent() *BaseApplicationEvent {
	return &BaseApplicationEvent{
		timestamp: time.Now(),
		ctx:       context.Background(),
	}
}

func (e *BaseApplicationEvent) ResetOccurredTime() {
	e.timestamp = time.Now()
}

func (e *BaseApplicationEvent) OccurredTime() time.Time {
	return e.timestamp
}

func (e *BaseApplicationEvent) SetEventContext(ctx context.Context) {
	e.ctx = ctx
}

func (e *BaseApplicationEvent) GetEventContext() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

type ApplicationContextEvent struct {
	BaseApplicationEvent
	appCtx     ApplicationContext
	generation uint64
}

func (e *ApplicationContextEvent) GetAppContext() ApplicationContext {
	return e.appCtx
}

// Generation 事件产生时context的刷新代数
func (e *ApplicationContextEvent) Generation() uint64 {
	return e.generation
}

func newContextEvent(appCtx ApplicationContext) ApplicationContextEvent {
	ret := ApplicationContextEvent{
		appCtx:     appCtx,
		generation: appCtx.Generation(),
	}
	ret.ResetOccurredTime()
	return ret
}

// 刷新完成后触发，单例已经创建完成，可以执行任意的业务逻辑
type ContextRefreshedEvent struct {
	ApplicationContextEvent
}

func NewContextRefreshedEvent(appCtx ApplicationContext) *ContextRefreshedEvent {
	return &ContextRefreshedEvent{ApplicationContextEvent: newContextEvent(appCtx)}
}

// 已到达ApplicationContext生命周期末端，单例即将销毁
type ContextClosedEvent struct {
	ApplicationContextEvent
}

func NewContextClosedEvent(appCtx ApplicationContext) *ContextClosedEvent {
	return &ContextClosedEvent{ApplicationContextEvent: newContextEvent(appCtx)}
}

// GetEventContext 从事件中提取事件context
// 参数 e: 事件
// 参数 defaultCtx: 默认context，如果e事件实现了EventContextHolder则返回事件的context，否则返回defaultCtx
// 返回 事件context或默认context
func GetEventContext(e ApplicationEvent, defaultCtx context.Context) context.Context {
	if ev, ok := e.(EventContextHolder); ok {
		return ev.GetEventContext()
	}
	return defaultCtx
}
