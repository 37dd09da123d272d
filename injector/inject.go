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
	"context"
	"fmt"
	"reflect"

	"github.com/xfali/neve-context/bean"
	reflection2 "github.com/xfali/neve-context/reflection"
	"github.com/xfali/neve-utils/reflection"
	xreflection "github.com/xfali/reflection"
	"github.com/xfali/xlog"
)

const (
	defaultInjectTagName = "inject"
)

var (
	InjectTagName = defaultInjectTagName

	interfaceType = reflect.TypeOf((*interface{})(nil)).Elem()
)

// Injector 根据定义创建对象：构造函数、工厂bean方法或静态工厂方法，之后按名称设置属性
type Injector interface {
	bean.Instantiator

	// 将属性值设置到对象o的字段中
	ApplyProperties(ctx context.Context, o interface{}, pvs *bean.PropertyValues, resolver bean.Resolver) error
}

type defaultInjector struct {
	logger  xlog.Logger
	types   *TypeRegistry
	tagName string
}

type Opt func(*defaultInjector)

func New(types *TypeRegistry, opts ...Opt) *defaultInjector {
	ret := &defaultInjector{
		logger:  xlog.GetLogger(),
		types:   types,
		tagName: InjectTagName,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// 配置字段名称tag，tag值为属性名称，默认为inject
func OptSetTagName(tagName string) Opt {
	return func(injector *defaultInjector) {
		injector.tagName = tagName
	}
}

func OptSetLogger(logger xlog.Logger) Opt {
	return func(injector *defaultInjector) {
		injector.logger = logger
	}
}

func (injector *defaultInjector) Instantiate(ctx context.Context, name string, def bean.Definition, resolver bean.Resolver) (interface{}, error) {
	g := def.Generic()
	var (
		fn reflect.Value
		o  reflect.Value
	)
	switch {
	case g.FactoryBean != "":
		fb, err := resolver.GetBeanContext(ctx, g.FactoryBean)
		if err != nil {
			return nil, err
		}
		fn = reflect.ValueOf(fb).MethodByName(g.FactoryMethod)
		if !fn.IsValid() {
			return nil, fmt.Errorf("factory method '%s' not found on factory bean '%s' (%s)", g.FactoryMethod, g.FactoryBean, reflection.GetObjectName(fb))
		}
	case g.FactoryMethod != "":
		f, ok := injector.types.function(g.ClassName + "." + g.FactoryMethod)
		if !ok {
			return nil, fmt.Errorf("static factory method '%s.%s' not registered", g.ClassName, g.FactoryMethod)
		}
		fn = f
	default:
		c, ok := injector.types.lookup(g.ClassName)
		if !ok {
			return nil, fmt.Errorf("class '%s' not registered", g.ClassName)
		}
		if c.fn.IsValid() {
			fn = c.fn
		} else {
			if !g.ConstructorArgs.IsEmpty() {
				return nil, fmt.Errorf("class '%s' registered without constructor function but has %d constructor arguments",
					g.ClassName, g.ConstructorArgs.Count())
			}
			o = reflect.New(c.t)
		}
	}

	if fn.IsValid() {
		v, err := injector.call(ctx, fn, &g.ConstructorArgs, resolver)
		if err != nil {
			return nil, err
		}
		o = v
	}
	if !o.IsValid() || ((o.Kind() == reflect.Ptr || o.Kind() == reflect.Interface) && o.IsNil()) {
		return nil, fmt.Errorf("bean '%s' created nil", name)
	}
	ret := o.Interface()
	if err := injector.ApplyProperties(ctx, ret, &g.Properties, resolver); err != nil {
		return nil, err
	}
	return ret, nil
}

func (injector *defaultInjector) call(ctx context.Context, fn reflect.Value, args *bean.ConstructorArgs, resolver bean.Resolver) (reflect.Value, error) {
	ft := fn.Type()
	values, err := args.Resolve()
	if err != nil {
		return reflect.Value{}, err
	}
	if ft.NumIn() != len(values) {
		return reflect.Value{}, fmt.Errorf("function %s requires %d arguments but %d declared", ft.String(), ft.NumIn(), len(values))
	}
	in := make([]reflect.Value, len(values))
	for i, arg := range values {
		v, err := injector.resolveValue(ctx, arg.Value, ft.In(i), resolver)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("constructor argument %d: %v", i, err)
		}
		in[i] = v
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return reflect.Value{}, fmt.Errorf("function %s has no return value", ft.String())
	}
	if len(out) > 1 {
		if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
			return reflect.Value{}, err
		}
	}
	return out[0], nil
}

func (injector *defaultInjector) ApplyProperties(ctx context.Context, o interface{}, pvs *bean.PropertyValues, resolver bean.Resolver) error {
	if pvs.Len() == 0 {
		return nil
	}
	v := reflect.ValueOf(o)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || !v.CanAddr() {
		return fmt.Errorf("cannot set properties on %s, must be a struct pointer", reflection.GetObjectName(o))
	}
	ptr := v.Addr()
	for _, pv := range pvs.List() {
		field, byTag, ok := injector.findField(v.Type(), pv.Name)
		if !ok {
			return fmt.Errorf("property '%s' not found on %s", pv.Name, reflection.GetTypeName(v.Type()))
		}
		if field.PkgPath != "" {
			return fmt.Errorf("property '%s' of %s is not settable", pv.Name, reflection.GetTypeName(v.Type()))
		}
		value, err := injector.resolveValue(ctx, pv.Value, field.Type, resolver)
		if err != nil {
			return fmt.Errorf("property '%s': %v", pv.Name, err)
		}
		if err := injector.setField(ptr, pv.Name, field, byTag, value); err != nil {
			return fmt.Errorf("property '%s' of %s: %v", pv.Name, reflection.GetTypeName(v.Type()), err)
		}
	}
	return nil
}

// findField 先按tag查找，再按首字母大写的字段名查找
func (injector *defaultInjector) findField(t reflect.Type, name string) (reflect.StructField, bool, bool) {
	for i := 0; i < t.NumField(); i++ {
		if tag, ok := t.Field(i).Tag.Lookup(injector.tagName); ok && tag == name {
			return t.Field(i), true, true
		}
	}
	if f, ok := t.FieldByName(reflection2.Capitalize(name)); ok && len(f.Index) > 0 {
		return f, false, true
	}
	return reflect.StructField{}, false, false
}

func (injector *defaultInjector) setField(ptr reflect.Value, name string, field reflect.StructField, byTag bool, value reflect.Value) error {
	switch field.Type.Kind() {
	case reflect.Func, reflect.Array, reflect.UnsafePointer:
		// 以下类型不支持转换，值已经是字段类型
		ptr.Elem().FieldByIndex(field.Index).Set(value)
		return nil
	}
	if byTag {
		return xreflection.SetFieldValueEx(ptr, name, value, injector.tagName, nil)
	}
	return xreflection.SetFieldValueEx(ptr, name, value, "", reflection2.Capitalize)
}

func (injector *defaultInjector) resolveValue(ctx context.Context, value bean.Value, t reflect.Type, resolver bean.Resolver) (reflect.Value, error) {
	switch v := value.(type) {
	case nil:
		return reflect.Zero(t), nil
	case bean.StringValue:
		return reflection2.ConvertString(string(v), t)
	case bean.RefValue:
		o, err := resolver.GetBeanContext(ctx, string(v))
		if err != nil {
			return reflect.Value{}, err
		}
		return reflection2.AssignableValue(o, t)
	case bean.ListValue:
		st := t
		if t.Kind() == reflect.Interface {
			st = reflect.SliceOf(interfaceType)
		}
		if st.Kind() != reflect.Slice {
			return reflect.Value{}, fmt.Errorf("cannot assign list to %s", reflection.GetTypeName(t))
		}
		ret := reflect.MakeSlice(st, 0, len(v))
		for _, e := range v {
			ev, err := injector.resolveValue(ctx, e, st.Elem(), resolver)
			if err != nil {
				return reflect.Value{}, err
			}
			ret = reflect.Append(ret, ev)
		}
		return reflection2.AssignableValue(ret.Interface(), t)
	case bean.MapValue:
		mt := t
		if t.Kind() == reflect.Interface {
			mt = reflect.MapOf(reflect.TypeOf(""), interfaceType)
		}
		if mt.Kind() != reflect.Map || mt.Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("cannot assign map to %s", reflection.GetTypeName(t))
		}
		ret := reflect.MakeMapWithSize(mt, len(v))
		for k, e := range v {
			ev, err := injector.resolveValue(ctx, e, mt.Elem(), resolver)
			if err != nil {
				return reflect.Value{}, err
			}
			ret.SetMapIndex(reflect.ValueOf(k).Convert(mt.Key()), ev)
		}
		return reflection2.AssignableValue(ret.Interface(), t)
	}
	return reflect.Value{}, fmt.Errorf("unsupported value %v", value)
}
