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

package bean

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-utils/reflection"
	"github.com/xfali/xlog"
)

type creationChainKey struct{}

type FactoryOpt func(f *Factory)

// Factory 持有一个定义注册表，负责bean的创建、缓存和销毁
type Factory struct {
	logger       xlog.Logger
	registry     *DefaultRegistry
	instantiator Instantiator

	createLock sync.Mutex

	lock        sync.RWMutex
	singletons  map[string]interface{}
	order       []string
	disposables map[string]string
	scopes      map[string]Scope
	processors  *OrderedList
}

func NewFactory(opts ...FactoryOpt) *Factory {
	ret := &Factory{
		logger:      xlog.GetLogger(),
		singletons:  map[string]interface{}{},
		disposables: map[string]string{},
		scopes:      map[string]Scope{},
		processors:  NewOrderedList(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.registry == nil {
		ret.registry = NewRegistry(OptSetRegistryLogger(ret.logger))
	}
	return ret
}

func OptSetFactoryLogger(logger xlog.Logger) FactoryOpt {
	return func(f *Factory) {
		f.logger = logger
	}
}

func OptSetRegistry(registry *DefaultRegistry) FactoryOpt {
	return func(f *Factory) {
		f.registry = registry
	}
}

func OptSetInstantiator(instantiator Instantiator) FactoryOpt {
	return func(f *Factory) {
		f.instantiator = instantiator
	}
}

func (f *Factory) Registry() *DefaultRegistry {
	return f.registry
}

// RegisterScope 注册自定义作用域，singleton和prototype不能被替换
func (f *Factory) RegisterScope(name string, scope Scope) error {
	if name == ScopeSingleton || name == ScopePrototype || name == ScopeDefault {
		return errors.Lifecycle("cannot replace built-in scope '%s'", name)
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.scopes[name] = scope
	return nil
}

func (f *Factory) Scope(name string) (Scope, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	s, ok := f.scopes[name]
	return s, ok
}

// AddPostProcessor 添加bean处理器，按Ordered排序
func (f *Factory) AddPostProcessor(processors ...PostProcessor) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for _, p := range processors {
		if p != nil {
			f.processors.AddOrdered(p)
		}
	}
}

func (f *Factory) PostProcessorCount() int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.processors.Len()
}

// RegisterSingleton 注册已创建好的单例对象，名称已存在时返回错误
func (f *Factory) RegisterSingleton(name string, o interface{}) error {
	if name == "" || o == nil {
		return errors.Lifecycle("singleton name and object must not be empty")
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if old, ok := f.singletons[name]; ok {
		return errors.Lifecycle("could not register object [%v] under bean name '%s': there is already object [%v] bound", o, name, old)
	}
	f.addSingleton(name, o, "")
	return nil
}

func (f *Factory) addSingleton(name string, o interface{}, destroyMethod string) {
	f.singletons[name] = o
	f.order = append(f.order, name)
	if destroyMethod != "" {
		f.disposables[name] = destroyMethod
	}
}

func (f *Factory) singleton(name string) (interface{}, bool) {
	f.lock.RLock()
	defer f.lock.RUnlock()
	o, ok := f.singletons[name]
	return o, ok
}

// SingletonNames 按创建顺序返回已创建的单例名称
func (f *Factory) SingletonNames() []string {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]string(nil), f.order...)
}

func (f *Factory) ContainsBean(name string) bool {
	name = f.registry.ResolveAlias(name)
	if _, ok := f.singleton(name); ok {
		return true
	}
	return f.registry.ContainsDefinition(name)
}

func (f *Factory) IsSingleton(name string) (bool, error) {
	name = f.registry.ResolveAlias(name)
	if _, ok := f.singleton(name); ok {
		return true, nil
	}
	def, err := f.registry.Merged(name)
	if err != nil {
		return false, err
	}
	return def.Generic().IsSingleton(), nil
}

func (f *Factory) GetBean(name string) (interface{}, error) {
	return f.GetBeanContext(context.Background(), name)
}

// GetBeanContext 获取bean，ctx传递给作用域和实例化器
func (f *Factory) GetBeanContext(ctx context.Context, name string) (interface{}, error) {
	name = f.registry.ResolveAlias(name)
	if o, ok := f.singleton(name); ok {
		return o, nil
	}
	chain, _ := ctx.Value(creationChainKey{}).([]string)
	if len(chain) == 0 {
		// 顶层创建串行执行，嵌套创建沿用外层的锁
		f.createLock.Lock()
		defer f.createLock.Unlock()
		if o, ok := f.singleton(name); ok {
			return o, nil
		}
	}
	return f.doGetBean(ctx, name, chain)
}

func (f *Factory) doGetBean(ctx context.Context, name string, chain []string) (interface{}, error) {
	def, err := f.registry.Merged(name)
	if err != nil {
		return nil, err
	}
	g := def.Generic()
	if g.Abstract {
		return nil, errors.BeanCreation(name, g.ResourceDescription, fmt.Errorf("bean definition is abstract"))
	}
	for _, n := range chain {
		if n == name {
			return nil, errors.BeanCreation(name, g.ResourceDescription,
				fmt.Errorf("requested bean is currently in creation: %s", strings.Join(append(chain, name), " -> ")))
		}
	}
	next := append(append([]string(nil), chain...), name)
	ctx = context.WithValue(ctx, creationChainKey{}, next)

	for _, dep := range g.DependsOn {
		if _, err := f.GetBeanContext(ctx, dep); err != nil {
			return nil, errors.BeanCreation(name, g.ResourceDescription,
				fmt.Errorf("failed to initialize dependency '%s': %w", dep, err))
		}
	}

	switch {
	case g.IsSingleton():
		o, err := f.createBean(ctx, name, def)
		if err != nil {
			return nil, err
		}
		f.lock.Lock()
		f.addSingleton(name, o, g.DestroyMethod)
		f.lock.Unlock()
		return o, nil
	case g.IsPrototype():
		return f.createBean(ctx, name, def)
	default:
		scope, ok := f.Scope(g.Scope)
		if !ok {
			return nil, errors.BeanCreation(name, g.ResourceDescription, fmt.Errorf("no scope registered for scope name '%s'", g.Scope))
		}
		o, err := scope.Get(ctx, name, func() (interface{}, error) {
			o, err := f.createBean(ctx, name, def)
			if err != nil {
				return nil, err
			}
			if err := scope.RegisterDestructionCallback(ctx, name, func() {
				if err := f.destroyBean(name, o, g.DestroyMethod); err != nil {
					f.logger.Errorln(err)
				}
			}); err != nil {
				return nil, err
			}
			return o, nil
		})
		if err != nil {
			if errors.IsCode(err, errors.CodeBeanCreation) {
				return nil, err
			}
			return nil, errors.BeanCreation(name, g.ResourceDescription, err)
		}
		return o, nil
	}
}

func (f *Factory) createBean(ctx context.Context, name string, def Definition) (interface{}, error) {
	g := def.Generic()
	if f.instantiator == nil {
		return nil, errors.BeanCreation(name, g.ResourceDescription, fmt.Errorf("no instantiator configured"))
	}
	o, err := f.instantiator.Instantiate(ctx, name, def, f)
	if err != nil {
		if errors.IsCode(err, errors.CodeBeanCreation) {
			return nil, err
		}
		return nil, errors.BeanCreation(name, g.ResourceDescription, err)
	}
	if o == nil {
		return nil, errors.BeanCreation(name, g.ResourceDescription, fmt.Errorf("instantiation returned nil"))
	}
	o, err = f.initializeBean(name, o, g)
	if err != nil {
		return nil, errors.BeanCreation(name, g.ResourceDescription, err)
	}
	return o, nil
}

func (f *Factory) initializeBean(name string, o interface{}, def *GenericDefinition) (interface{}, error) {
	if v, ok := o.(NameAware); ok {
		v.SetBeanName(name)
	}
	f.lock.RLock()
	processors := f.processors.Values()
	f.lock.RUnlock()

	var err error
	for _, p := range processors {
		o, err = p.(PostProcessor).BeforeInitialization(o, name)
		if err != nil {
			return nil, err
		}
	}
	if v, ok := o.(Initializing); ok {
		if err = v.BeanAfterSet(); err != nil {
			return nil, err
		}
	}
	if def.InitMethod != "" {
		if err = invokeMethod(o, def.InitMethod); err != nil {
			return nil, err
		}
	}
	for _, p := range processors {
		o, err = p.(PostProcessor).AfterInitialization(o, name)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// PreInstantiateSingletons 按注册顺序创建所有非抽象、非延迟的单例
func (f *Factory) PreInstantiateSingletons() error {
	for _, name := range f.registry.DefinitionNames() {
		def, err := f.registry.Merged(name)
		if err != nil {
			return err
		}
		g := def.Generic()
		if g.Abstract || !g.IsSingleton() || g.IsLazy() {
			continue
		}
		if _, err := f.GetBean(name); err != nil {
			return err
		}
	}
	return nil
}

// NamesForType 按注册顺序返回类名、父类或接口匹配className的bean名称
func (f *Factory) NamesForType(className string) []string {
	var ret []string
	f.registry.Scan(func(name string, def Definition) bool {
		if def.Generic().Abstract {
			return true
		}
		merged, err := f.registry.Merged(name)
		if err != nil {
			return true
		}
		if matchesClass(merged, className) {
			ret = append(ret, name)
		}
		return true
	})
	return ret
}

func matchesClass(def Definition, className string) bool {
	if def.Generic().ClassName == className {
		return true
	}
	m, ok := MetadataOf(def)
	if !ok {
		return false
	}
	if m.SuperClassName() == className {
		return true
	}
	for _, i := range m.InterfaceNames() {
		if i == className {
			return true
		}
	}
	return false
}

// DestroySingletons 按创建顺序的逆序销毁单例，单个对象销毁失败不影响其他对象
func (f *Factory) DestroySingletons() error {
	f.createLock.Lock()
	defer f.createLock.Unlock()

	f.lock.Lock()
	order := f.order
	singletons := f.singletons
	disposables := f.disposables
	f.order = nil
	f.singletons = map[string]interface{}{}
	f.disposables = map[string]string{}
	f.lock.Unlock()

	var errs errors.Errors
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		if err := f.destroyBean(name, singletons[name], disposables[name]); err != nil {
			f.logger.Errorln(err)
			errs.AddError(err)
		}
	}
	return errs.Err()
}

func (f *Factory) destroyBean(name string, o interface{}, destroyMethod string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Lifecycle("destroy bean '%s' panic: %v", name, r)
		}
	}()
	if v, ok := o.(Disposable); ok {
		if err := v.BeanDestroy(); err != nil {
			return errors.Lifecycle("destroy bean '%s' failed: %v", name, err)
		}
	}
	if destroyMethod != "" {
		if err := invokeMethod(o, destroyMethod); err != nil {
			return errors.Lifecycle("destroy method '%s' of bean '%s' failed: %v", destroyMethod, name, err)
		}
	}
	return nil
}

// invokeMethod 调用无参方法，方法只能没有返回值或返回error
func invokeMethod(o interface{}, method string) error {
	m := reflect.ValueOf(o).MethodByName(method)
	if !m.IsValid() {
		return fmt.Errorf("method '%s' not found on %s", method, reflection.GetObjectName(o))
	}
	if m.Type().NumIn() != 0 {
		return fmt.Errorf("method '%s' of %s must not have parameters", method, reflection.GetObjectName(o))
	}
	out := m.Call(nil)
	if len(out) > 0 {
		if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
			return err
		}
	}
	return nil
}
