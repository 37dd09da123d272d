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

package injector

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/xfali/neve-context/reflection"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

type constructor struct {
	t  reflect.Type
	fn reflect.Value
}

// TypeRegistry 类名到构造方式的映射。
// 进程内创建一次，传递给实例化器和扫描器，进程退出时随之释放。
type TypeRegistry struct {
	lock      sync.RWMutex
	types     map[string]constructor
	functions map[string]reflect.Value
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:     map[string]constructor{},
		functions: map[string]reflect.Value{},
	}
}

// RegisterType 注册类型，参数为对象或对象指针，如 &UserService{}，实例化时创建零值
func (r *TypeRegistry) RegisterType(objects ...interface{}) error {
	for _, o := range objects {
		t := reflect.TypeOf(o)
		if t == nil {
			return fmt.Errorf("cannot register nil type")
		}
		for t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		if t.Name() == "" {
			return fmt.Errorf("type %s is not a named type", t.String())
		}
		r.lock.Lock()
		r.types[reflection.GetClassName(t)] = constructor{t: t}
		r.lock.Unlock()
	}
	return nil
}

// RegisterConstructor 注册构造函数，类名取返回值类型。
// 函数类型为 func(args...) T 或 func(args...) (T, error)
func (r *TypeRegistry) RegisterConstructor(fn interface{}) error {
	fv, rt, err := checkFunction(fn)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.types[reflection.GetClassName(rt)] = constructor{t: rt, fn: fv}
	return nil
}

// RegisterNamedConstructor 使用指定类名注册构造函数
func (r *TypeRegistry) RegisterNamedConstructor(className string, fn interface{}) error {
	fv, rt, err := checkFunction(fn)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.types[className] = constructor{t: rt, fn: fv}
	return nil
}

// RegisterFunction 注册静态工厂方法，name格式为 类名.方法名
func (r *TypeRegistry) RegisterFunction(name string, fn interface{}) error {
	if !strings.Contains(name, ".") {
		return fmt.Errorf("function name '%s' must be in form Class.Method", name)
	}
	fv, _, err := checkFunction(fn)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.functions[name] = fv
	return nil
}

func (r *TypeRegistry) lookup(className string) (constructor, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.types[className]
	return c, ok
}

func (r *TypeRegistry) function(name string) (reflect.Value, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	f, ok := r.functions[name]
	return f, ok
}

// Type 返回类名对应的类型
func (r *TypeRegistry) Type(className string) (reflect.Type, bool) {
	c, ok := r.lookup(className)
	return c.t, ok
}

// ClassNames 返回已注册的类名
func (r *TypeRegistry) ClassNames() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ret := make([]string, 0, len(r.types))
	for k := range r.types {
		ret = append(ret, k)
	}
	return ret
}

func checkFunction(fn interface{}) (reflect.Value, reflect.Type, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return fv, nil, fmt.Errorf("%T is not a function", fn)
	}
	ft := fv.Type()
	switch ft.NumOut() {
	case 1:
	case 2:
		if ft.Out(1) != errType {
			return fv, nil, fmt.Errorf("function %s: second return value must be error", ft.String())
		}
	default:
		return fv, nil, fmt.Errorf("function %s must return T or (T, error)", ft.String())
	}
	return fv, ft.Out(0), nil
}
