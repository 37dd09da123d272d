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
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/xfali/xlog"
)

const (
	defaultEventBufferSize = 4096
)

var (
	eventType = reflect.TypeOf((*ApplicationEvent)(nil)).Elem()

	errNilEvent         = errors.New("event is nil")
	errEventQueueFull   = errors.New("event queue is full")
	errEventProcStopped = errors.New("event processor is not running")
)

type ApplicationEventProcessor interface {
	ApplicationEventPublisher
	ApplicationEventHandler

	// 同步通知事件
	// 不同于PublishEvent，NotifyEvent在Processor Close之后仍然能向Listener发送事件。
	NotifyEvent(e ApplicationEvent) error

	// 替换由bean产生的监听器，每次刷新后调用
	ResetBeanListeners(beans ...interface{})

	// 启动处理器，如有初始化操作必须定义在该方法
	Start() error

	// 停止处理，与Start方法对应，如有针对Start初始化的清理操作必须定义在该方法
	Close() error
}

type defaultEventProcessor struct {
	logger xlog.Logger

	listeners     []ApplicationEventListener
	beanListeners []ApplicationEventListener
	listenerLock  sync.Mutex

	eventBufSize int
	eventChan    chan ApplicationEvent

	consumerListenerFac func() ApplicationEventConsumerListener

	runLock    sync.RWMutex
	running    bool
	stopChan   chan struct{}
	finishChan chan struct{}
}

type EventProcessorOpt func(processor *defaultEventProcessor)

func NewEventProcessor(opts ...EventProcessorOpt) *defaultEventProcessor {
	ret := &defaultEventProcessor{
		logger:              xlog.GetLogger(),
		eventBufSize:        defaultEventBufferSize,
		consumerListenerFac: defaultConsumerListenerFac,
	}

	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func OptSetEventProcessorLogger(logger xlog.Logger) EventProcessorOpt {
	return func(proc *defaultEventProcessor) {
		proc.logger = logger
	}
}

// set event channel buffer size
func OptSetEventBufferSize(size int) EventProcessorOpt {
	return func(proc *defaultEventProcessor) {
		proc.eventBufSize = size
	}
}

func OptSetConsumerListenerFactory(fac func() ApplicationEventConsumerListener) EventProcessorOpt {
	return func(processor *defaultEventProcessor) {
		processor.consumerListenerFac = fac
	}
}

// Start 启动事件循环，已启动时直接返回
func (h *defaultEventProcessor) Start() error {
	h.runLock.Lock()
	defer h.runLock.Unlock()
	if h.running {
		return nil
	}
	h.eventChan = make(chan ApplicationEvent, h.eventBufSize)
	h.stopChan = make(chan struct{})
	h.finishChan = make(chan struct{})
	h.running = true

	go h.eventLoop(h.eventChan, h.stopChan, h.finishChan)

	return nil
}

// Close 停止事件循环，队列中剩余的事件处理完后返回
func (h *defaultEventProcessor) Close() error {
	h.runLock.Lock()
	if !h.running {
		h.runLock.Unlock()
		return nil
	}
	h.running = false
	close(h.stopChan)
	finish := h.finishChan
	h.runLock.Unlock()

	//wait for eventLoop exit
	<-finish
	h.logger.Infoln("Event Processor closed.")
	return nil
}

func (h *defaultEventProcessor) addListener(l ApplicationEventListener) {
	h.listenerLock.Lock()
	defer h.listenerLock.Unlock()

	h.listeners = append(h.listeners, l)
}

func (h *defaultEventProcessor) toListener(o interface{}) (ApplicationEventListener, error) {
	if l, ok := o.(ApplicationEventListener); ok {
		return l, nil
	}

	if c, ok := o.(ApplicationEventConsumer); ok {
		l := h.consumerListenerFac()
		if err := c.RegisterConsumer(l); err != nil {
			return nil, err
		}
		return l, nil
	}

	if reflect.TypeOf(o).Kind() == reflect.Func {
		l := h.consumerListenerFac()
		if err := l.RegisterApplicationEventConsumer(o); err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, nil
}

func (h *defaultEventProcessor) AddListeners(listeners ...interface{}) {
	for _, o := range listeners {
		if o == nil {
			continue
		}
		l, err := h.toListener(o)
		if err != nil {
			h.logger.Errorln(err)
		} else if l != nil {
			h.addListener(l)
		}
	}
}

// ResetBeanListeners 只保留beans中可以作为监听器的对象，不是监听器的对象被忽略
func (h *defaultEventProcessor) ResetBeanListeners(beans ...interface{}) {
	var ls []ApplicationEventListener
	for _, o := range beans {
		if _, ok := o.(ApplicationEventListener); ok {
			ls = append(ls, o.(ApplicationEventListener))
			continue
		}
		if _, ok := o.(ApplicationEventConsumer); ok {
			l, err := h.toListener(o)
			if err != nil {
				h.logger.Errorln(err)
				continue
			}
			ls = append(ls, l)
		}
	}
	h.listenerLock.Lock()
	defer h.listenerLock.Unlock()
	h.beanListeners = ls
}

func (h *defaultEventProcessor) notifyEvent(e ApplicationEvent) {
	h.listenerLock.Lock()
	listeners := make([]ApplicationEventListener, 0, len(h.listeners)+len(h.beanListeners))
	listeners = append(listeners, h.listeners...)
	listeners = append(listeners, h.beanListeners...)
	h.listenerLock.Unlock()

	for _, v := range listeners {
		h.invoke(v, e)
	}
}

func (h *defaultEventProcessor) invoke(l ApplicationEventListener, e ApplicationEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorf("Event listener panic: %v\n", r)
		}
	}()
	l.OnApplicationEvent(e)
}

func (h *defaultEventProcessor) eventLoop(eventChan chan ApplicationEvent, stopChan, finishChan chan struct{}) {
	defer close(finishChan)
	for {
		select {
		case <-stopChan:
			size := len(eventChan)
			for i := 0; i < size; i++ {
				h.notifyEvent(<-eventChan)
			}
			return
		case e := <-eventChan:
			h.notifyEvent(e)
		}
	}
}

func (h *defaultEventProcessor) PublishEvent(e ApplicationEvent) error {
	if e == nil {
		return errNilEvent
	}
	h.runLock.RLock()
	defer h.runLock.RUnlock()
	if !h.running {
		return errEventProcStopped
	}
	select {
	case h.eventChan <- e:
		return nil
	default:
		return errEventQueueFull
	}
}

func (h *defaultEventProcessor) PostEvent(ctx context.Context, e ApplicationEvent) error {
	if e == nil {
		return errNilEvent
	}
	h.runLock.RLock()
	defer h.runLock.RUnlock()
	if !h.running {
		return errEventProcStopped
	}
	select {
	case h.eventChan <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *defaultEventProcessor) NotifyEvent(e ApplicationEvent) error {
	if e == nil {
		return errNilEvent
	}
	h.notifyEvent(e)
	return nil
}

type eventProcessor struct {
	invokers []ConsumerInvoker
}

func defaultConsumerListenerFac() ApplicationEventConsumerListener {
	return &eventProcessor{}
}

func (ep *eventProcessor) RegisterApplicationEventConsumer(consumer interface{}) error {
	invoker := eventInvoker{}
	if err := invoker.ResolveConsumer(consumer); err != nil {
		return err
	}
	ep.invokers = append(ep.invokers, &invoker)
	return nil
}

func (ep *eventProcessor) OnApplicationEvent(e ApplicationEvent) {
	for _, invoker := range ep.invokers {
		invoker.Invoke(e)
	}
}

type ConsumerInvoker interface {
	// 消费
	Invoke(data interface{}) bool

	// 检查consumer是否符合类型要求
	ResolveConsumer(consumer interface{}) error
}

type consumerInvoker struct {
	et reflect.Type
	fv reflect.Value
}

func (invoker *consumerInvoker) Invoke(data interface{}) bool {
	t := reflect.TypeOf(data)
	if t.AssignableTo(invoker.et) {
		invoker.fv.Call([]reflect.Value{reflect.ValueOf(data)})
		return true
	}
	return false
}

func resolveFunc(consumer interface{}) (reflect.Type, reflect.Value, error) {
	t := reflect.TypeOf(consumer)
	if t == nil || t.Kind() != reflect.Func {
		return nil, reflect.Value{}, errors.Errorf("consumer %v is not a function", consumer)
	}
	if t.NumIn() != 1 {
		return nil, reflect.Value{}, errors.Errorf("consumer %s does not match, expect func(E)", t.String())
	}
	return t.In(0), reflect.ValueOf(consumer), nil
}

type payloadInvoker struct {
	consumerInvoker
}

func (invoker *payloadInvoker) ResolveConsumer(consumer interface{}) (err error) {
	invoker.et, invoker.fv, err = resolveFunc(consumer)
	return err
}

type eventInvoker struct {
	consumerInvoker
}

func (invoker *eventInvoker) ResolveConsumer(consumer interface{}) error {
	et, fv, err := resolveFunc(consumer)
	if err != nil {
		return err
	}
	if !et.AssignableTo(eventType) {
		return errors.Errorf("consumer param %s must implement ApplicationEvent", et.String())
	}
	invoker.et = et
	invoker.fv = fv
	return nil
}

type PayloadEventListener struct {
	invokers []ConsumerInvoker
}

// o:获得payload的consumer 类型func(Type)
func NewPayloadEventListener(consumer ...interface{}) (*PayloadEventListener, error) {
	ret := &PayloadEventListener{
		invokers: make([]ConsumerInvoker, 0, len(consumer)),
	}
	if len(consumer) == 0 {
		return nil, errors.New("payload consumers are empty")
	}
	for _, o := range consumer {
		if err := ret.RegisterApplicationEventConsumer(o); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (l *PayloadEventListener) RegisterApplicationEventConsumer(consumer interface{}) error {
	invoker := payloadInvoker{}
	if err := invoker.ResolveConsumer(consumer); err != nil {
		return err
	}
	l.invokers = append(l.invokers, &invoker)
	return nil
}

func (l *PayloadEventListener) OnApplicationEvent(e ApplicationEvent) {
	if pe, ok := e.(*PayloadApplicationEvent); ok {
		for _, invoker := range l.invokers {
			invoker.Invoke(pe.payload)
		}
	}
}

type PayloadApplicationEvent struct {
	BaseApplicationEvent
	payload interface{}
}

func NewPayloadApplicationEvent(payload interface{}) *PayloadApplicationEvent {
	if payload == nil {
		return nil
	}
	return &PayloadApplicationEvent{
		BaseApplicationEvent: *NewBaseApplicationEvent(),
		payload:              payload,
	}
}

func (e *PayloadApplicationEvent) Payload() interface{} {
	return e.payload
}

// disabledEventProc 禁用事件时使用，发送事件返回错误，生命周期事件被忽略
type disabledEventProc struct{}

var errEventDisabled = errors.New("application event process: disabled")

func NewDisableEventProcessor() *disabledEventProc {
	return &disabledEventProc{}
}

func (p *disabledEventProc) NotifyEvent(e ApplicationEvent) error {
	return nil
}

func (p *disabledEventProc) PublishEvent(e ApplicationEvent) error {
	return errEventDisabled
}

func (p *disabledEventProc) PostEvent(ctx context.Context, e ApplicationEvent) error {
	return errEventDisabled
}

func (p *disabledEventProc) AddListeners(listeners ...interface{}) {}

func (p *disabledEventProc) ResetBeanListeners(beans ...interface{}) {}

func (p *disabledEventProc) Start() error {
	return nil
}

func (p *disabledEventProc) Close() error {
	return nil
}
