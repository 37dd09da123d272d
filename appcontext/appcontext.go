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

	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/env"
)

type ApplicationContext interface {
	// context唯一标识
	ID() string

	// 用于日志的名称
	DisplayName() string

	// 获得应用名称
	GetApplicationName() string

	// 启动时间，即最近一次刷新成功的时间
	StartupTime() time.Time

	// 刷新代数，每次调用Refresh加1
	Generation() uint64

	State() State

	Environment() env.Environment

	// 根据名称获得对象，context未处于Active状态时返回Lifecycle错误
	GetBean(name string) (interface{}, error)

	GetBeanContext(ctx context.Context, name string) (interface{}, error)

	ContainsBean(name string) bool

	// 按注册顺序返回全部bean定义名称
	BeanNames() []string

	// 返回类名、父类或接口匹配className的bean名称
	NamesForType(className string) []string

	ApplicationEventPublisher

	ApplicationEventHandler
}

type ConfigurableContext interface {
	ApplicationContext

	// 设置配置路径，下一次刷新生效
	SetConfigLocations(locations ...string)

	// 追加配置路径
	Load(locations ...string)

	// 配置路径，未设置时为按命名空间计算的默认路径
	ConfigLocations() []string

	SetNamespace(namespace string)

	Namespace() string

	// 销毁当前的bean工厂并重新读取定义、创建单例
	Refresh() error

	// 关闭，用于资源回收
	Close() error
}

type ApplicationContextAware interface {
	// 装配ApplicationContext
	// 在bean初始化之前调用
	SetApplicationContext(ctx ApplicationContext)
}

type EnvironmentAware interface {
	SetEnvironment(e env.Environment)
}

// awareProcessor 为实现了Aware接口的bean装配context和环境
type awareProcessor struct {
	ctx ApplicationContext
}

func (p *awareProcessor) BeforeInitialization(o interface{}, name string) (interface{}, error) {
	if v, ok := o.(EnvironmentAware); ok {
		v.SetEnvironment(p.ctx.Environment())
	}
	if v, ok := o.(ApplicationContextAware); ok {
		v.SetApplicationContext(p.ctx)
	}
	return o, nil
}

func (p *awareProcessor) AfterInitialization(o interface{}, name string) (interface{}, error) {
	return o, nil
}

func (p *awareProcessor) Order() int {
	return -1000
}

var _ bean.PostProcessor = (*awareProcessor)(nil)
