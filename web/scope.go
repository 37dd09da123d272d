/*
 * Copyright (C) 2024, Xiongfa Li.
 * All rights reserved.
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

package web

import (
	"context"
	"sync"

	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/xlog"
)

const (
	ScopeRequest = "request"
	ScopeSession = "session"
)

type requestKey struct{}
type sessionKey struct{}

// attributes 作用域内对象及其销毁回调
type attributes struct {
	lock      sync.Mutex
	objects   map[string]interface{}
	order     []string
	callbacks map[string]func()
	creating  map[string]*sync.Mutex
}

func newAttributes() *attributes {
	return &attributes{
		objects:   map[string]interface{}{},
		callbacks: map[string]func(){},
		creating:  map[string]*sync.Mutex{},
	}
}

// get 同名对象的创建互斥，创建期间不持有属性锁，create中可以获取同一作用域的其他对象
func (a *attributes) get(name string, create func() (interface{}, error)) (interface{}, error) {
	a.lock.Lock()
	if o, ok := a.objects[name]; ok {
		a.lock.Unlock()
		return o, nil
	}
	m, ok := a.creating[name]
	if !ok {
		m = &sync.Mutex{}
		a.creating[name] = m
	}
	a.lock.Unlock()

	m.Lock()
	defer m.Unlock()
	a.lock.Lock()
	o, ok := a.objects[name]
	a.lock.Unlock()
	if ok {
		return o, nil
	}

	o, err := create()
	if err != nil {
		return nil, err
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	a.objects[name] = o
	a.order = append(a.order, name)
	return o, nil
}

func (a *attributes) remove(name string) (interface{}, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	o, ok := a.objects[name]
	if !ok {
		return nil, false
	}
	delete(a.objects, name)
	delete(a.callbacks, name)
	for i, v := range a.order {
		if v == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return o, true
}

func (a *attributes) registerCallback(name string, cb func()) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.callbacks[name] = cb
}

// destroy 按创建顺序的逆序执行销毁回调
func (a *attributes) destroy(logger xlog.Logger) {
	a.lock.Lock()
	order := a.order
	callbacks := a.callbacks
	a.objects = map[string]interface{}{}
	a.order = nil
	a.callbacks = map[string]func(){}
	a.lock.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		if cb, ok := callbacks[order[i]]; ok {
			runCallback(logger, order[i], cb)
		}
	}
}

func runCallback(logger xlog.Logger, name string, cb func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("destruction callback of '%s' panic: %v\n", name, r)
		}
	}()
	cb()
}

// RequestScope 对象生命周期与单个http请求相同，需要由Middleware绑定请求
type RequestScope struct {
	logger xlog.Logger
}

func NewRequestScope(logger xlog.Logger) *RequestScope {
	return &RequestScope{logger: logger}
}

// Begin 为ctx绑定新的请求作用域，返回的end函数在请求结束时调用
func (s *RequestScope) Begin(ctx context.Context) (context.Context, func()) {
	attrs := newAttributes()
	return context.WithValue(ctx, requestKey{}, attrs), func() {
		attrs.destroy(s.logger)
	}
}

func (s *RequestScope) attributes(ctx context.Context) (*attributes, error) {
	if ctx != nil {
		if attrs, ok := ctx.Value(requestKey{}).(*attributes); ok {
			return attrs, nil
		}
	}
	return nil, errors.Lifecycle("scope '%s' is not active for the current context, no request bound", ScopeRequest)
}

func (s *RequestScope) Get(ctx context.Context, name string, create func() (interface{}, error)) (interface{}, error) {
	attrs, err := s.attributes(ctx)
	if err != nil {
		return nil, err
	}
	return attrs.get(name, create)
}

func (s *RequestScope) Remove(ctx context.Context, name string) (interface{}, bool) {
	attrs, err := s.attributes(ctx)
	if err != nil {
		return nil, false
	}
	return attrs.remove(name)
}

func (s *RequestScope) RegisterDestructionCallback(ctx context.Context, name string, callback func()) error {
	attrs, err := s.attributes(ctx)
	if err != nil {
		return err
	}
	attrs.registerCallback(name, callback)
	return nil
}

// SessionScope 对象按会话id保存，会话失效或context刷新、关闭时销毁
type SessionScope struct {
	logger xlog.Logger

	lock     sync.Mutex
	sessions map[string]*attributes
}

func NewSessionScope(logger xlog.Logger) *SessionScope {
	return &SessionScope{
		logger:   logger,
		sessions: map[string]*attributes{},
	}
}

// WithSession 为ctx绑定会话id
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID 获得ctx绑定的会话id
func SessionID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionKey{}).(string)
	return id, ok && id != ""
}

func (s *SessionScope) attributes(ctx context.Context, create bool) (*attributes, error) {
	id, ok := SessionID(ctx)
	if !ok {
		return nil, errors.Lifecycle("scope '%s' is not active for the current context, no session bound", ScopeSession)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	attrs, ok := s.sessions[id]
	if !ok {
		if !create {
			return nil, nil
		}
		attrs = newAttributes()
		s.sessions[id] = attrs
	}
	return attrs, nil
}

func (s *SessionScope) Get(ctx context.Context, name string, create func() (interface{}, error)) (interface{}, error) {
	attrs, err := s.attributes(ctx, true)
	if err != nil {
		return nil, err
	}
	return attrs.get(name, create)
}

func (s *SessionScope) Remove(ctx context.Context, name string) (interface{}, bool) {
	attrs, err := s.attributes(ctx, false)
	if err != nil || attrs == nil {
		return nil, false
	}
	return attrs.remove(name)
}

func (s *SessionScope) RegisterDestructionCallback(ctx context.Context, name string, callback func()) error {
	attrs, err := s.attributes(ctx, true)
	if err != nil {
		return err
	}
	attrs.registerCallback(name, callback)
	return nil
}

// Invalidate 销毁会话中的全部对象
func (s *SessionScope) Invalidate(id string) {
	s.lock.Lock()
	attrs, ok := s.sessions[id]
	delete(s.sessions, id)
	s.lock.Unlock()
	if ok {
		attrs.destroy(s.logger)
	}
}

func (s *SessionScope) SessionCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}

// Reset 销毁全部会话
func (s *SessionScope) Reset() {
	s.lock.Lock()
	sessions := s.sessions
	s.sessions = map[string]*attributes{}
	s.lock.Unlock()
	for _, attrs := range sessions {
		attrs.destroy(s.logger)
	}
}

var (
	_ bean.Scope = (*RequestScope)(nil)
	_ bean.Scope = (*SessionScope)(nil)
)
