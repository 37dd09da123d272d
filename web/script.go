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
	"reflect"

	"github.com/xfali/neve-context/appcontext"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/reflection"
	nreflection "github.com/xfali/neve-utils/reflection"
)

// ScriptObject 供脚本使用的context动态访问对象。
// 属性依次从bean、context的只读属性（如displayName对应DisplayName方法，返回error的方法除外）
// 以及环境属性中查找。
type ScriptObject struct {
	ctx appcontext.ConfigurableContext
}

func NewScriptObject(ctx appcontext.ConfigurableContext) *ScriptObject {
	return &ScriptObject{ctx: ctx}
}

func (s *ScriptObject) Property(name string) (interface{}, error) {
	if s.ctx.ContainsBean(name) {
		return s.ctx.GetBean(name)
	}
	for _, m := range []string{reflection.Capitalize(name), "Get" + reflection.Capitalize(name)} {
		if v, ok := s.getter(m); ok {
			return v, nil
		}
	}
	if v, ok := s.ctx.Environment().Property(name); ok {
		return v, nil
	}
	return nil, errors.NoSuchDefinition(name)
}

func (s *ScriptObject) getter(method string) (interface{}, bool) {
	m := reflect.ValueOf(s.ctx).MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 || m.Type().Out(0) == errorType {
		return nil, false
	}
	return m.Call(nil)[0].Interface(), true
}

// SetProperty 调用context的Set方法，如namespace对应SetNamespace
func (s *ScriptObject) SetProperty(name string, value interface{}) error {
	method := "Set" + reflection.Capitalize(name)
	m := reflect.ValueOf(s.ctx).MethodByName(method)
	if !m.IsValid() || m.Type().NumIn() != 1 {
		return fmt.Errorf("property '%s' is not writable", name)
	}
	if m.Type().IsVariadic() {
		if str, ok := value.(string); ok {
			value = []string{str}
		}
	}
	_, err := callMethod(m, []interface{}{value}, m.Type().IsVariadic())
	return err
}

// Invoke 调用context的方法，最后一个返回值为error时作为错误返回
func (s *ScriptObject) Invoke(method string, args ...interface{}) ([]interface{}, error) {
	m := reflect.ValueOf(s.ctx).MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("method '%s' not found on %s", method, nreflection.GetObjectName(s.ctx))
	}
	return callMethod(m, args, false)
}

func callMethod(m reflect.Value, args []interface{}, spread bool) ([]interface{}, error) {
	t := m.Type()
	variadic := t.IsVariadic()
	if (!variadic && len(args) != t.NumIn()) || (variadic && len(args) < t.NumIn()-1) {
		return nil, fmt.Errorf("%s requires %d arguments but %d given", t.String(), t.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		switch {
		case variadic && spread && i == t.NumIn()-1:
			pt = t.In(i)
		case variadic && i >= t.NumIn()-1:
			pt = t.In(t.NumIn() - 1).Elem()
		default:
			pt = t.In(i)
		}
		v, err := reflection.AssignableValue(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %v", i, err)
		}
		in[i] = v
	}
	var out []reflect.Value
	if spread {
		out = m.CallSlice(in)
	} else {
		out = m.Call(in)
	}
	ret := make([]interface{}, 0, len(out))
	for _, v := range out {
		ret = append(ret, v.Interface())
	}
	if n := len(ret); n > 0 && t.Out(n-1) == errorType {
		if err, _ := ret[n-1].(error); err != nil {
			return ret[:n-1], err
		}
		return ret[:n-1], nil
	}
	return ret, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
