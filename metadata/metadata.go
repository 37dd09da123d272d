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

// Package metadata 提供类型结构和注解信息的只读视图。
// 两种获取方式：反射已加载的类型（ReadType）、直接解析源码而不加载（SourceReader）。
package metadata

import "sort"

const (
	// TagName 类型级注解声明在空白字段的tag中：_ struct{} `neve:"@Service(userService)"`
	TagName = "neve"
	// DirectivePrefix 方法级注解在源码中的声明前缀：//neve:@Bean(name)
	DirectivePrefix = "//neve:"
	// ValueKey 未命名的注解属性
	ValueKey = "value"
)

type Attributes map[string]string

func (a Attributes) Get(key string) string {
	return a[key]
}

func (a Attributes) Value() string {
	return a[ValueKey]
}

func (a Attributes) clone() Attributes {
	ret := make(Attributes, len(a))
	for k, v := range a {
		ret[k] = v
	}
	return ret
}

type Annotation struct {
	Name       string
	Attributes Attributes
}

type ClassMetadata interface {
	// 全限定类名
	ClassName() string

	// 父类（第一个嵌入字段）名称，没有时返回空串
	SuperClassName() string

	HasSuperClass() bool

	// 直接实现的接口名称
	InterfaceNames() []string

	// 直接声明的注解名称，按声明顺序
	AnnotationTypes() []string

	// 是否存在注解，包含元注解
	HasAnnotation(name string) bool

	// 是否直接声明了注解
	HasDirectAnnotation(name string) bool

	AnnotationAttributes(name string) (Attributes, bool)

	// 声明的方法
	DeclaredMethods() []MethodMetadata

	// 包含指定注解的方法
	AnnotatedMethods(name string) []MethodMetadata
}

type MethodMetadata interface {
	MethodName() string

	DeclaringClassName() string

	HasAnnotation(name string) bool

	AnnotationAttributes(name string) (Attributes, bool)
}

type annotated struct {
	direct   []Annotation
	resolved map[string]Annotation
}

func (a *annotated) HasAnnotation(name string) bool {
	_, ok := a.resolved[name]
	return ok
}

func (a *annotated) HasDirectAnnotation(name string) bool {
	for _, v := range a.direct {
		if v.Name == name {
			return true
		}
	}
	return false
}

func (a *annotated) AnnotationAttributes(name string) (Attributes, bool) {
	v, ok := a.resolved[name]
	if !ok {
		return nil, false
	}
	return v.Attributes.clone(), true
}

// AnnotationMetadata 不可变的类型元数据快照，两种读取方式产生同一种快照
type AnnotationMetadata struct {
	annotated
	className      string
	superClassName string
	interfaces     []string
	methods        []MethodMetadata
}

type methodSpec struct {
	name        string
	annotations []Annotation
}

func newAnnotationMetadata(registry *AnnotationRegistry, className, superClassName string,
	interfaces []string, annotations []Annotation, methods []methodSpec) *AnnotationMetadata {
	ifaces := append([]string(nil), interfaces...)
	sort.Strings(ifaces)
	ret := &AnnotationMetadata{
		annotated: annotated{
			direct:   annotations,
			resolved: registry.resolve(annotations),
		},
		className:      className,
		superClassName: superClassName,
		interfaces:     ifaces,
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].name < methods[j].name
	})
	for _, m := range methods {
		ret.methods = append(ret.methods, &methodMetadata{
			annotated: annotated{
				direct:   m.annotations,
				resolved: registry.resolve(m.annotations),
			},
			name:      m.name,
			declaring: className,
		})
	}
	return ret
}

func (m *AnnotationMetadata) ClassName() string {
	return m.className
}

func (m *AnnotationMetadata) SuperClassName() string {
	return m.superClassName
}

func (m *AnnotationMetadata) HasSuperClass() bool {
	return m.superClassName != ""
}

func (m *AnnotationMetadata) InterfaceNames() []string {
	return append([]string(nil), m.interfaces...)
}

func (m *AnnotationMetadata) AnnotationTypes() []string {
	ret := make([]string, 0, len(m.direct))
	for _, v := range m.direct {
		ret = append(ret, v.Name)
	}
	return ret
}

func (m *AnnotationMetadata) DeclaredMethods() []MethodMetadata {
	return append([]MethodMetadata(nil), m.methods...)
}

func (m *AnnotationMetadata) AnnotatedMethods(name string) []MethodMetadata {
	var ret []MethodMetadata
	for _, v := range m.methods {
		if v.HasAnnotation(name) {
			ret = append(ret, v)
		}
	}
	return ret
}

type methodMetadata struct {
	annotated
	name      string
	declaring string
}

func (m *methodMetadata) MethodName() string {
	return m.name
}

func (m *methodMetadata) DeclaringClassName() string {
	return m.declaring
}
