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

package metadata

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/xfali/neve-context/reflection"
)

const (
	// MethodAnnotationsName 可选方法，返回方法名到注解表达式的映射，用于声明方法级注解
	MethodAnnotationsName = "MethodAnnotations"

	autogeneratedFile = "<autogenerated>"
)

type MethodAnnotator interface {
	MethodAnnotations() map[string]string
}

// ReadObject 通过反射读取o的类型元数据
func ReadObject(registry *AnnotationRegistry, o interface{}) (*AnnotationMetadata, error) {
	if o == nil {
		return nil, errors.New("cannot read metadata of nil")
	}
	return ReadType(registry, reflect.TypeOf(o))
}

// ReadType 通过反射读取已加载类型的元数据，不包含嵌入字段提升的方法
func ReadType(registry *AnnotationRegistry, t reflect.Type) (*AnnotationMetadata, error) {
	if t == nil {
		return nil, errors.New("cannot read metadata of nil type")
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return nil, errors.Errorf("type %s is not a named type", t.String())
	}
	var (
		super       string
		annotations []Annotation
	)
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.Name == "_" {
				as, err := ParseAnnotations(field.Tag.Get(TagName))
				if err != nil {
					return nil, errors.WithMessagef(err, "type %s", reflection.GetClassName(t))
				}
				annotations = append(annotations, as...)
				continue
			}
			if field.Anonymous && super == "" {
				super = reflection.GetClassName(field.Type)
			}
		}
	}

	methods, err := readMethods(t)
	if err != nil {
		return nil, err
	}

	return newAnnotationMetadata(registry,
		reflection.GetClassName(t),
		super,
		registry.implemented(t),
		annotations,
		methods), nil
}

func readMethods(t reflect.Type) ([]methodSpec, error) {
	var exprs map[string]string
	if a, ok := reflect.New(t).Interface().(MethodAnnotator); ok {
		exprs = a.MethodAnnotations()
	}
	seen := map[string]bool{}
	var ret []methodSpec
	for _, mt := range []reflect.Type{t, reflect.PtrTo(t)} {
		for i := 0; i < mt.NumMethod(); i++ {
			m := mt.Method(i)
			if seen[m.Name] || m.Name == MethodAnnotationsName || !declaredOn(t, m) {
				continue
			}
			seen[m.Name] = true
			as, err := ParseAnnotations(exprs[m.Name])
			if err != nil {
				return nil, errors.WithMessagef(err, "method %s.%s", reflection.GetClassName(t), m.Name)
			}
			ret = append(ret, methodSpec{name: m.Name, annotations: as})
		}
	}
	return ret, nil
}

// declaredOn 编译器为提升方法及指针接收者包装生成的函数位于<autogenerated>
func declaredOn(t reflect.Type, m reflect.Method) bool {
	f := runtime.FuncForPC(m.Func.Pointer())
	if f == nil {
		return false
	}
	file, _ := f.FileLine(f.Entry())
	if file == autogeneratedFile {
		return false
	}
	name := f.Name()
	return strings.HasSuffix(name, "."+t.Name()+"."+m.Name) ||
		strings.HasSuffix(name, ".(*"+t.Name()+")."+m.Name)
}
