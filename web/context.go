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
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/xfali/neve-context/appcontext"
	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/env"
	"github.com/xfali/neve-context/processor"
	"github.com/xfali/neve-context/reader"
	"github.com/xfali/neve-context/resource"
	"github.com/xfali/xlog"
)

const (
	DefaultConfigLocationPrefix = "/config/"
	DefaultConfigName           = "application-context"
	DefaultSessionCookie        = "NEVESESSIONID"

	ServerContextBeanName     = "serverContext"
	ContextParametersBeanName = "contextParameters"
	ContextAttributesBeanName = "contextAttributes"

	ComponentConfigPropertySourceName = "componentConfigInitParams"
	ServerContextPropertySourceName   = "serverContextInitParams"

	RootContextDisplayName = "Root WebApplicationContext"
)

// Context 绑定到http服务的context，组合RefreshableContext，
// 配置路径相对于服务内容根目录解析
type Context struct {
	*appcontext.RefreshableContext

	logger        xlog.Logger
	server        *ServerContext
	config        *ComponentConfig
	namespace     string
	format        reader.Format
	sessionCookie string
	ctxOpts       []appcontext.Opt

	requestScope *RequestScope
	sessionScope *SessionScope
}

type Opt func(c *Context)

func OptSetLogger(logger xlog.Logger) Opt {
	return func(c *Context) {
		c.logger = logger
	}
}

// OptSetComponentConfig 未设置命名空间时使用组件名称作为命名空间
func OptSetComponentConfig(config *ComponentConfig) Opt {
	return func(c *Context) {
		c.config = config
	}
}

func OptSetNamespace(namespace string) Opt {
	return func(c *Context) {
		c.namespace = namespace
	}
}

func OptSetFormat(format reader.Format) Opt {
	return func(c *Context) {
		c.format = format
	}
}

func OptSetSessionCookie(name string) Opt {
	return func(c *Context) {
		c.sessionCookie = name
	}
}

// OptAddContextOpts 传递给内部RefreshableContext的选项，在web默认选项之后生效
func OptAddContextOpts(opts ...appcontext.Opt) Opt {
	return func(c *Context) {
		c.ctxOpts = append(c.ctxOpts, opts...)
	}
}

func NewContext(server *ServerContext, opts ...Opt) *Context {
	ret := &Context{
		logger:        xlog.GetLogger(),
		server:        server,
		format:        reader.FormatXml,
		sessionCookie: DefaultSessionCookie,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.namespace == "" && ret.config != nil {
		ret.namespace = ret.config.Name()
	}
	ret.requestScope = NewRequestScope(ret.logger)
	ret.sessionScope = NewSessionScope(ret.logger)

	displayName := RootContextDisplayName
	if ret.namespace != "" {
		displayName = fmt.Sprintf("WebApplicationContext for namespace '%s'", ret.namespace)
	}
	ctxOpts := []appcontext.Opt{
		appcontext.OptSetLogger(ret.logger),
		appcontext.OptSetDisplayName(displayName),
		appcontext.OptSetApplicationName(server.ContextPath()),
		appcontext.OptSetNamespace(ret.namespace),
		appcontext.OptSetFormat(ret.format),
		appcontext.OptSetDefaultLocations(ConfigLocations(ret.format)),
		appcontext.OptSetResourceLoader(resource.NewLoader(resource.OptSetRoot(server.Root()))),
		appcontext.OptSetPropertySourceInitializer(ret.initPropertySources),
		appcontext.OptAddProcessors(processor.ProcessorFunc(ret.postProcessFactory)),
		appcontext.OptAddPostProcessors(&awareProcessor{server: server, config: ret.config}),
	}
	ret.RefreshableContext = appcontext.NewRefreshableContext(append(ctxOpts, ret.ctxOpts...)...)
	return ret
}

// ConfigLocations 按格式计算默认配置路径：
// 根context为/config/application-context.xml，命名空间ns为/config/ns.xml，脚本格式后缀为.beans，
// 源码扫描读取/下（或/ns/下）全部.go文件
func ConfigLocations(format reader.Format) func(namespace string) []string {
	switch format {
	case reader.FormatScript:
		return appcontext.DefaultConfigLocations(DefaultConfigLocationPrefix, DefaultConfigName, reader.ScriptSuffix)
	case reader.FormatScan:
		return func(namespace string) []string {
			if namespace == "" {
				return []string{"/**/*" + reader.SourceSuffix}
			}
			return []string{"/" + namespace + "/**/*" + reader.SourceSuffix}
		}
	}
	return appcontext.DefaultConfigLocations(DefaultConfigLocationPrefix, DefaultConfigName, reader.XmlSuffix)
}

func (c *Context) ServerContext() *ServerContext {
	return c.server
}

func (c *Context) ComponentConfig() *ComponentConfig {
	return c.config
}

func (c *Context) RequestScope() *RequestScope {
	return c.requestScope
}

func (c *Context) SessionScope() *SessionScope {
	return c.sessionScope
}

// GetResource 以服务内容根目录解析路径
func (c *Context) GetResource(path string) resource.Resource {
	return resource.NewLoader(resource.OptSetRoot(c.server.Root())).GetResource(path)
}

// initPropertySources 组件参数优先于服务参数，二者都优先于其他属性源
func (c *Context) initPropertySources(e env.Environment) error {
	e.PropertySources().AddFirst(env.NewMapSource(ServerContextPropertySourceName, c.server.InitParameters()))
	if c.config != nil {
		e.PropertySources().AddFirst(env.NewMapSource(ComponentConfigPropertySourceName, c.config.InitParameters()))
	}
	return nil
}

func (c *Context) postProcessFactory(factory *bean.Factory) error {
	// 上一代的会话对象不能进入新的一代
	c.sessionScope.Reset()
	if err := factory.RegisterScope(ScopeRequest, c.requestScope); err != nil {
		return err
	}
	if err := factory.RegisterScope(ScopeSession, c.sessionScope); err != nil {
		return err
	}
	if err := factory.RegisterSingleton(ServerContextBeanName, c.server); err != nil {
		return err
	}
	params := c.server.InitParameters()
	if c.config != nil {
		for k, v := range c.config.InitParameters() {
			params[k] = v
		}
	}
	if err := factory.RegisterSingleton(ContextParametersBeanName, params); err != nil {
		return err
	}
	return factory.RegisterSingleton(ContextAttributesBeanName, c.server.Attributes())
}

// Middleware 为每个请求绑定request作用域，并按cookie绑定会话，没有会话时创建新会话
func (c *Context) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if cookie, err := r.Cookie(c.sessionCookie); err == nil {
			id = cookie.Value
		}
		if id == "" {
			id = uuid.NewString()
			path := c.server.ContextPath()
			if path == "" {
				path = "/"
			}
			http.SetCookie(w, &http.Cookie{
				Name:     c.sessionCookie,
				Value:    id,
				Path:     path,
				HttpOnly: true,
			})
		}
		ctx, end := c.requestScope.Begin(WithSession(r.Context(), id))
		defer end()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Mount 在路由上安装作用域中间件
func (c *Context) Mount(r chi.Router) {
	r.Use(c.Middleware)
}

// GetRequestBean 在请求的作用域中获取对象
func (c *Context) GetRequestBean(r *http.Request, name string) (interface{}, error) {
	return c.GetBeanContext(r.Context(), name)
}

// InvalidateSession 销毁会话中的对象
func (c *Context) InvalidateSession(id string) {
	c.sessionScope.Invalidate(id)
}

func (c *Context) Close() error {
	err := c.RefreshableContext.Close()
	c.sessionScope.Reset()
	return err
}

type awareProcessor struct {
	server *ServerContext
	config *ComponentConfig
}

func (p *awareProcessor) BeforeInitialization(o interface{}, name string) (interface{}, error) {
	if v, ok := o.(ServerContextAware); ok {
		v.SetServerContext(p.server)
	}
	if v, ok := o.(ComponentConfigAware); ok && p.config != nil {
		v.SetComponentConfig(p.config)
	}
	return o, nil
}

func (p *awareProcessor) AfterInitialization(o interface{}, name string) (interface{}, error) {
	return o, nil
}

var _ appcontext.ConfigurableContext = (*Context)(nil)
