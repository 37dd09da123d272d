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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xfali/neve-context/errors"
)

var destroyed []string

type testBean struct {
	Name     string
	Ref      interface{}
	afterSet bool
	started  bool
	beanName string
	fail     bool
}

func (b *testBean) BeanAfterSet() error {
	b.afterSet = true
	return nil
}

func (b *testBean) BeanDestroy() error {
	destroyed = append(destroyed, b.Name)
	if b.fail {
		return fmt.Errorf("destroy %s failed", b.Name)
	}
	return nil
}

func (b *testBean) Start() {
	b.started = true
}

func (b *testBean) SetBeanName(name string) {
	b.beanName = name
}

// 属性name作为对象名，属性ref作为引用
func testInstantiator() Instantiator {
	return InstantiatorFunc(func(ctx context.Context, name string, def Definition, resolver Resolver) (interface{}, error) {
		g := def.Generic()
		if g.ClassName == "fail" {
			return nil, fmt.Errorf("cannot create")
		}
		ret := &testBean{Name: name}
		if v, ok := g.Properties.Get("ref"); ok {
			o, err := resolver.GetBeanContext(ctx, string(v.(RefValue)))
			if err != nil {
				return nil, err
			}
			ret.Ref = o
		}
		if _, ok := g.Properties.Get("failDestroy"); ok {
			ret.fail = true
		}
		return ret, nil
	})
}

func newTestFactory() *Factory {
	return NewFactory(OptSetInstantiator(testInstantiator()))
}

func register(t *testing.T, f *Factory, name string, opts ...func(d *GenericDefinition)) {
	d := newDef("test.Bean", name+".xml")
	for _, opt := range opts {
		opt(d)
	}
	require.NoError(t, f.Registry().RegisterDefinition(name, d))
}

func TestFactoryScopes(t *testing.T) {
	f := newTestFactory()
	register(t, f, "single", func(d *GenericDefinition) { d.InitMethod = "Start" })
	register(t, f, "proto", func(d *GenericDefinition) { d.Scope = ScopePrototype })
	require.NoError(t, f.Registry().RegisterAlias("s", "single"))

	a, err := f.GetBean("single")
	require.NoError(t, err)
	b, err := f.GetBean("s")
	require.NoError(t, err)
	assert.Same(t, a, b)
	tb := a.(*testBean)
	assert.True(t, tb.afterSet)
	assert.True(t, tb.started)
	assert.Equal(t, "single", tb.beanName)

	p1, err := f.GetBean("proto")
	require.NoError(t, err)
	p2, err := f.GetBean("proto")
	require.NoError(t, err)
	assert.NotSame(t, p1, p2)

	ok, err := f.IsSingleton("proto")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, f.ContainsBean("s"))
	assert.False(t, f.ContainsBean("none"))

	_, err = f.GetBean("none")
	assert.True(t, errors.IsCode(err, errors.CodeNoSuchDefinition))
}

func TestFactoryReferencesAndCycles(t *testing.T) {
	f := newTestFactory()
	register(t, f, "a", func(d *GenericDefinition) { d.Properties.Add("ref", RefValue("b")) })
	register(t, f, "b")
	register(t, f, "loop1", func(d *GenericDefinition) { d.Properties.Add("ref", RefValue("loop2")) })
	register(t, f, "loop2", func(d *GenericDefinition) { d.Properties.Add("ref", RefValue("loop1")) })
	register(t, f, "abstract", func(d *GenericDefinition) { d.Abstract = true })
	register(t, f, "broken", func(d *GenericDefinition) { d.ClassName = "fail" })

	a, err := f.GetBean("a")
	require.NoError(t, err)
	b, err := f.GetBean("b")
	require.NoError(t, err)
	assert.Same(t, b, a.(*testBean).Ref)
	assert.Equal(t, []string{"b", "a"}, f.SingletonNames())

	_, err = f.GetBean("loop1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeBeanCreation))
	assert.Contains(t, err.Error(), "loop1 -> loop2 -> loop1")

	_, err = f.GetBean("abstract")
	assert.True(t, errors.IsCode(err, errors.CodeBeanCreation))

	_, err = f.GetBean("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.xml")
}

func TestFactoryDependsOnAndPreInstantiate(t *testing.T) {
	f := newTestFactory()
	register(t, f, "late", func(d *GenericDefinition) { d.Lazy = LazyTrue })
	register(t, f, "first", func(d *GenericDefinition) { d.DependsOn = []string{"dep"} })
	register(t, f, "dep")
	register(t, f, "proto", func(d *GenericDefinition) { d.Scope = ScopePrototype })

	require.NoError(t, f.PreInstantiateSingletons())
	assert.Equal(t, []string{"dep", "first"}, f.SingletonNames())
}

func TestFactoryDestroy(t *testing.T) {
	destroyed = nil
	f := newTestFactory()
	register(t, f, "one")
	register(t, f, "two", func(d *GenericDefinition) { d.Properties.Add("failDestroy", StringValue("true")) })
	register(t, f, "three")
	require.NoError(t, f.RegisterSingleton("manual", &testBean{Name: "manual"}))
	assert.Error(t, f.RegisterSingleton("manual", &testBean{}))
	require.NoError(t, f.PreInstantiateSingletons())

	err := f.DestroySingletons()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroy two failed")
	assert.Equal(t, []string{"three", "two", "one", "manual"}, destroyed)
	assert.Empty(t, f.SingletonNames())
}

type orderedProcessor struct {
	order int
	log   *[]string
}

func (p *orderedProcessor) Order() int {
	return p.order
}

func (p *orderedProcessor) BeforeInitialization(o interface{}, name string) (interface{}, error) {
	*p.log = append(*p.log, fmt.Sprintf("before%d:%s", p.order, name))
	return o, nil
}

func (p *orderedProcessor) AfterInitialization(o interface{}, name string) (interface{}, error) {
	*p.log = append(*p.log, fmt.Sprintf("after%d:%s", p.order, name))
	return o, nil
}

func TestFactoryPostProcessors(t *testing.T) {
	var log []string
	f := newTestFactory()
	f.AddPostProcessor(&orderedProcessor{order: 2, log: &log}, &orderedProcessor{order: 1, log: &log})
	register(t, f, "x")
	_, err := f.GetBean("x")
	require.NoError(t, err)
	assert.Equal(t, []string{"before1:x", "before2:x", "after1:x", "after2:x"}, log)
	assert.Equal(t, 2, f.PostProcessorCount())
}

type mapScope struct {
	lock      sync.Mutex
	objects   map[string]interface{}
	callbacks map[string]func()
}

func (s *mapScope) Get(ctx context.Context, name string, create func() (interface{}, error)) (interface{}, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if o, ok := s.objects[name]; ok {
		return o, nil
	}
	o, err := create()
	if err != nil {
		return nil, err
	}
	s.objects[name] = o
	return o, nil
}

func (s *mapScope) Remove(ctx context.Context, name string) (interface{}, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	o, ok := s.objects[name]
	delete(s.objects, name)
	return o, ok
}

func (s *mapScope) RegisterDestructionCallback(ctx context.Context, name string, callback func()) error {
	s.callbacks[name] = callback
	return nil
}

func TestFactoryCustomScope(t *testing.T) {
	destroyed = nil
	f := newTestFactory()
	scope := &mapScope{objects: map[string]interface{}{}, callbacks: map[string]func(){}}
	assert.Error(t, f.RegisterScope(ScopeSingleton, scope))
	require.NoError(t, f.RegisterScope("custom", scope))
	register(t, f, "scoped", func(d *GenericDefinition) { d.Scope = "custom" })
	register(t, f, "unknown", func(d *GenericDefinition) { d.Scope = "nope" })

	a, err := f.GetBean("scoped")
	require.NoError(t, err)
	b, err := f.GetBean("scoped")
	require.NoError(t, err)
	assert.Same(t, a, b)

	scope.callbacks["scoped"]()
	assert.Equal(t, []string{"scoped"}, destroyed)

	_, err = f.GetBean("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestFactoryNamesForType(t *testing.T) {
	f := newTestFactory()
	register(t, f, "a")
	register(t, f, "b", func(d *GenericDefinition) { d.ClassName = "other.Type" })
	register(t, f, "c")
	register(t, f, "d", func(d *GenericDefinition) { d.Abstract = true })
	assert.Equal(t, []string{"a", "c"}, f.NamesForType("test.Bean"))
}

func TestFactoryConcurrentGet(t *testing.T) {
	f := newTestFactory()
	register(t, f, "shared", func(d *GenericDefinition) { d.Properties.Add("ref", RefValue("dep")) })
	register(t, f, "dep")

	var wg sync.WaitGroup
	results := make([]interface{}, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := f.GetBean("shared")
			assert.NoError(t, err)
			results[i] = o
		}(i)
	}
	wg.Wait()
	for _, o := range results {
		assert.Same(t, results[0], o)
	}
}
