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

// Package web 将refreshable context绑定到http服务：以服务内容根目录解析资源，
// 提供request/session作用域以及由服务参数组成的属性源。
package web

import (
	"io/fs"
	"sort"
	"sync"
)

// ServerContext 服务级信息，一个服务进程通常只有一个
type ServerContext struct {
	contextPath string
	root        fs.FS
	initParams  map[string]string

	lock  sync.RWMutex
	attrs map[string]interface{}
}

type ServerContextOpt func(sc *ServerContext)

// NewServerContext contextPath为服务路径前缀（根路径为空串），root为内容根目录
func NewServerContext(contextPath string, root fs.FS, opts ...ServerContextOpt) *ServerContext {
	ret := &ServerContext{
		contextPath: contextPath,
		root:        root,
		initParams:  map[string]string{},
		attrs:       map[string]interface{}{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func OptSetInitParameter(key, value string) ServerContextOpt {
	return func(sc *ServerContext) {
		sc.initParams[key] = value
	}
}

func OptSetInitParameters(params map[string]string) ServerContextOpt {
	return func(sc *ServerContext) {
		for k, v := range params {
			sc.initParams[k] = v
		}
	}
}

func (sc *ServerContext) ContextPath() string {
	return sc.contextPath
}

func (sc *ServerContext) Root() fs.FS {
	return sc.root
}

func (sc *ServerContext) InitParameter(key string) (string, bool) {
	v, ok := sc.initParams[key]
	return v, ok
}

func (sc *ServerContext) InitParameters() map[string]string {
	return copyParams(sc.initParams)
}

func (sc *ServerContext) Attribute(name string) (interface{}, bool) {
	sc.lock.RLock()
	defer sc.lock.RUnlock()
	v, ok := sc.attrs[name]
	return v, ok
}

func (sc *ServerContext) SetAttribute(name string, value interface{}) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	if value == nil {
		delete(sc.attrs, name)
		return
	}
	sc.attrs[name] = value
}

func (sc *ServerContext) RemoveAttribute(name string) {
	sc.SetAttribute(name, nil)
}

func (sc *ServerContext) AttributeNames() []string {
	sc.lock.RLock()
	defer sc.lock.RUnlock()
	ret := make([]string, 0, len(sc.attrs))
	for k := range sc.attrs {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Attributes 属性快照
func (sc *ServerContext) Attributes() map[string]interface{} {
	sc.lock.RLock()
	defer sc.lock.RUnlock()
	ret := make(map[string]interface{}, len(sc.attrs))
	for k, v := range sc.attrs {
		ret[k] = v
	}
	return ret
}

// ComponentConfig 服务内单个组件（如某个handler）的配置，名称用作context的命名空间
type ComponentConfig struct {
	name       string
	server     *ServerContext
	initParams map[string]string
}

func NewComponentConfig(name string, server *ServerContext, params map[string]string) *ComponentConfig {
	return &ComponentConfig{
		name:       name,
		server:     server,
		initParams: copyParams(params),
	}
}

func (c *ComponentConfig) Name() string {
	return c.name
}

func (c *ComponentConfig) ServerContext() *ServerContext {
	return c.server
}

func (c *ComponentConfig) InitParameter(key string) (string, bool) {
	v, ok := c.initParams[key]
	return v, ok
}

func (c *ComponentConfig) InitParameters() map[string]string {
	return copyParams(c.initParams)
}

type ServerContextAware interface {
	SetServerContext(sc *ServerContext)
}

type ComponentConfigAware interface {
	SetComponentConfig(config *ComponentConfig)
}

func copyParams(params map[string]string) map[string]string {
	ret := make(map[string]string, len(params))
	for k, v := range params {
		ret[k] = v
	}
	return ret
}
