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
	"fmt"
	"strings"

	"github.com/xfali/neve-context/metadata"
)

const (
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
	// ScopeDefault 未设置，合并后视为singleton
	ScopeDefault = ""
)

type LazyMode int8

const (
	// LazyDefault 未设置，合并时继承父定义
	LazyDefault LazyMode = iota
	LazyFalse
	LazyTrue
)

func ParseLazy(s string) (LazyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return LazyDefault, nil
	case "true":
		return LazyTrue, nil
	case "false":
		return LazyFalse, nil
	}
	return LazyDefault, fmt.Errorf("invalid lazy value %q", s)
}

type Role int

const (
	RoleApplication Role = iota
	RoleSupport
	RoleInfrastructure
)

func (r Role) String() string {
	switch r {
	case RoleSupport:
		return "support"
	case RoleInfrastructure:
		return "infrastructure"
	}
	return "application"
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "application", "0":
		return RoleApplication, nil
	case "support", "1":
		return RoleSupport, nil
	case "infrastructure", "2":
		return RoleInfrastructure, nil
	}
	return RoleApplication, fmt.Errorf("invalid role %q", s)
}

// Definition bean的构造描述
type Definition interface {
	// 获得通用属性，返回的对象属于该定义，修改会影响定义本身
	Generic() *GenericDefinition

	// 深拷贝
	Clone() Definition
}

type GenericDefinition struct {
	// 类名，例如 github.com.acme.app.UserService
	ClassName string
	Scope     string
	Lazy      LazyMode
	Primary   bool
	Abstract  bool
	Role      Role

	// 父定义名称，可以是别名
	Parent        string
	FactoryBean   string
	FactoryMethod string
	InitMethod    string
	DestroyMethod string
	DependsOn     []string
	Description   string

	ConstructorArgs ConstructorArgs
	Properties      PropertyValues

	// 定义来源，例如 classpath:config/app.xml
	ResourceDescription string
}

func NewGenericDefinition(className string) *GenericDefinition {
	return &GenericDefinition{
		ClassName: className,
	}
}

func (d *GenericDefinition) Generic() *GenericDefinition {
	return d
}

func (d *GenericDefinition) Clone() Definition {
	return d.clone()
}

func (d *GenericDefinition) clone() *GenericDefinition {
	ret := *d
	ret.DependsOn = append([]string(nil), d.DependsOn...)
	ret.ConstructorArgs = d.ConstructorArgs.clone()
	ret.Properties = d.Properties.clone()
	return &ret
}

func (d *GenericDefinition) IsSingleton() bool {
	return d.Scope == ScopeSingleton || d.Scope == ScopeDefault
}

func (d *GenericDefinition) IsPrototype() bool {
	return d.Scope == ScopePrototype
}

func (d *GenericDefinition) IsLazy() bool {
	return d.Lazy == LazyTrue
}

// Validate 检查合并后的定义是否可以用于实例化
func (d *GenericDefinition) Validate() error {
	if d.Abstract {
		return nil
	}
	if d.ClassName == "" && d.FactoryMethod == "" {
		return fmt.Errorf("neither class nor factory method specified")
	}
	if d.FactoryBean != "" && d.FactoryMethod == "" {
		return fmt.Errorf("factory bean '%s' specified without factory method", d.FactoryBean)
	}
	return nil
}

func (d *GenericDefinition) String() string {
	buf := strings.Builder{}
	buf.WriteString(fmt.Sprintf("class [%s]; scope=%s; abstract=%t; lazy=%t; primary=%t",
		d.ClassName, d.Scope, d.Abstract, d.IsLazy(), d.Primary))
	if d.FactoryBean != "" {
		buf.WriteString("; factoryBean=" + d.FactoryBean)
	}
	if d.FactoryMethod != "" {
		buf.WriteString("; factoryMethod=" + d.FactoryMethod)
	}
	if d.ResourceDescription != "" {
		buf.WriteString("; defined in " + d.ResourceDescription)
	}
	return buf.String()
}

// overrideFrom 使用other中已设置的属性覆盖当前定义
func (d *GenericDefinition) overrideFrom(other *GenericDefinition) {
	if other.ClassName != "" {
		d.ClassName = other.ClassName
	}
	if other.Scope != "" {
		d.Scope = other.Scope
	}
	if other.Lazy != LazyDefault {
		d.Lazy = other.Lazy
	}
	d.Abstract = other.Abstract
	d.Primary = other.Primary
	d.Role = other.Role
	if other.FactoryBean != "" {
		d.FactoryBean = other.FactoryBean
	}
	if other.FactoryMethod != "" {
		d.FactoryMethod = other.FactoryMethod
	}
	if other.InitMethod != "" {
		d.InitMethod = other.InitMethod
	}
	if other.DestroyMethod != "" {
		d.DestroyMethod = other.DestroyMethod
	}
	if other.Description != "" {
		d.Description = other.Description
	}
	d.DependsOn = append([]string(nil), other.DependsOn...)
	d.ConstructorArgs.merge(other.ConstructorArgs)
	for _, pv := range other.Properties.values {
		d.Properties.Add(pv.Name, copyValue(pv.Value))
	}
	d.ResourceDescription = other.ResourceDescription
	d.Parent = ""
}

// AnnotatedDefinition 携带类型元数据的定义，由扫描或反射产生
type AnnotatedDefinition struct {
	GenericDefinition
	Metadata metadata.ClassMetadata
}

// NewAnnotatedDefinition 类名取自元数据
func NewAnnotatedDefinition(m metadata.ClassMetadata) *AnnotatedDefinition {
	return &AnnotatedDefinition{
		GenericDefinition: GenericDefinition{
			ClassName: m.ClassName(),
		},
		Metadata: m,
	}
}

func (d *AnnotatedDefinition) Clone() Definition {
	return &AnnotatedDefinition{
		GenericDefinition: *d.GenericDefinition.clone(),
		Metadata:          d.Metadata,
	}
}

// Merge 合并父子定义，返回新的定义，不修改任何输入
func Merge(parent, child Definition) Definition {
	ret := parent.Generic().clone()
	ret.overrideFrom(child.Generic())
	if ret.Scope == ScopeDefault {
		ret.Scope = ScopeSingleton
	}
	if a, ok := child.(*AnnotatedDefinition); ok {
		return &AnnotatedDefinition{
			GenericDefinition: *ret,
			Metadata:          a.Metadata,
		}
	}
	return ret
}

// MetadataOf 返回定义携带的类型元数据
func MetadataOf(def Definition) (metadata.ClassMetadata, bool) {
	if a, ok := def.(*AnnotatedDefinition); ok && a.Metadata != nil {
		return a.Metadata, true
	}
	return nil, false
}
