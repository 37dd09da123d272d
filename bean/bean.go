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

package bean

import "context"

type Initializing interface {
	// 当初始化和注入完成时回调
	BeanAfterSet() error
}

type Disposable interface {
	// 进入销毁阶段，应该尽快做回收处理并退出处理任务
	BeanDestroy() error
}

// NameAware 实例化后注入bean名称
type NameAware interface {
	SetBeanName(name string)
}

// PostProcessor 在bean初始化前后处理对象，可以返回替换后的对象
type PostProcessor interface {
	BeforeInitialization(o interface{}, name string) (interface{}, error)

	AfterInitialization(o interface{}, name string) (interface{}, error)
}

// Resolver 按名称获取bean，用于解析引用
type Resolver interface {
	GetBeanContext(ctx context.Context, name string) (interface{}, error)
}

// Instantiator 根据合并后的定义创建对象并设置属性
type Instantiator interface {
	Instantiate(ctx context.Context, name string, def Definition, resolver Resolver) (interface{}, error)
}

type InstantiatorFunc func(ctx context.Context, name string, def Definition, resolver Resolver) (interface{}, error)

func (f InstantiatorFunc) Instantiate(ctx context.Context, name string, def Definition, resolver Resolver) (interface{}, error) {
	return f(ctx, name, def, resolver)
}

// Scope 自定义作用域，create由容器提供
type Scope interface {
	// 获取作用域中的对象，不存在时使用create创建并保存
	Get(ctx context.Context, name string, create func() (interface{}, error)) (interface{}, error)

	// 从作用域中删除对象
	Remove(ctx context.Context, name string) (interface{}, bool)

	// 注册对象销毁回调，作用域结束时调用
	RegisterDestructionCallback(ctx context.Context, name string, callback func()) error
}
