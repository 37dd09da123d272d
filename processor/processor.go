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

package processor

import (
	"github.com/xfali/neve-context/bean"
)

type Processor interface {
	// 定义读取完成之后、单例预实例化之前调用。
	// 可以注册作用域、单例、bean处理器，也可以修改注册表中的定义。
	// 多个Processor按bean.Ordered排序后依次调用，返回错误则刷新失败
	PostProcessFactory(factory *bean.Factory) error
}

type ProcessorFunc func(factory *bean.Factory) error

func (f ProcessorFunc) PostProcessFactory(factory *bean.Factory) error {
	return f(factory)
}

// Invoke 按顺序调用处理器
func Invoke(factory *bean.Factory, processors ...Processor) error {
	list := bean.NewOrderedList()
	for _, p := range processors {
		if p != nil {
			list.AddOrdered(p)
		}
	}
	var err error
	list.Foreach(func(v interface{}) bool {
		err = v.(Processor).PostProcessFactory(factory)
		return err == nil
	})
	return err
}

// ScopeProcessor 注册自定义作用域
type ScopeProcessor struct {
	scopes map[string]bean.Scope
	names  []string
}

func NewScopeProcessor() *ScopeProcessor {
	return &ScopeProcessor{
		scopes: map[string]bean.Scope{},
	}
}

func (p *ScopeProcessor) Add(name string, scope bean.Scope) *ScopeProcessor {
	if _, ok := p.scopes[name]; !ok {
		p.names = append(p.names, name)
	}
	p.scopes[name] = scope
	return p
}

func (p *ScopeProcessor) PostProcessFactory(factory *bean.Factory) error {
	for _, name := range p.names {
		if err := factory.RegisterScope(name, p.scopes[name]); err != nil {
			return err
		}
	}
	return nil
}

// Order 作用域需要先于其他处理器注册
func (p *ScopeProcessor) Order() int {
	return -1000
}
