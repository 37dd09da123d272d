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
	"sort"
	"strings"
)

// Value 属性值或构造参数值
type Value interface {
	String() string

	copyValue() Value
}

// StringValue 字面值，实例化时按目标类型转换
type StringValue string

// RefValue 引用其他bean
type RefValue string

type ListValue []Value

type MapValue map[string]Value

func (v StringValue) String() string {
	return string(v)
}

func (v StringValue) copyValue() Value {
	return v
}

func (v RefValue) String() string {
	return "ref(" + string(v) + ")"
}

func (v RefValue) copyValue() Value {
	return v
}

func (v ListValue) String() string {
	buf := strings.Builder{}
	buf.WriteString("[")
	for i, e := range v {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(e.String())
	}
	buf.WriteString("]")
	return buf.String()
}

func (v ListValue) copyValue() Value {
	ret := make(ListValue, len(v))
	for i, e := range v {
		ret[i] = e.copyValue()
	}
	return ret
}

func (v MapValue) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := strings.Builder{}
	buf.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(fmt.Sprintf("%s: %s", k, v[k].String()))
	}
	buf.WriteString("}")
	return buf.String()
}

func (v MapValue) copyValue() Value {
	ret := make(MapValue, len(v))
	for k, e := range v {
		ret[k] = e.copyValue()
	}
	return ret
}

func copyValue(v Value) Value {
	if v == nil {
		return nil
	}
	return v.copyValue()
}

type PropertyValue struct {
	Name  string
	Value Value
}

// PropertyValues 按名称唯一的属性集合，保持声明顺序
type PropertyValues struct {
	values []PropertyValue
}

// Add 添加属性，同名属性原位替换
func (pvs *PropertyValues) Add(name string, value Value) {
	for i := range pvs.values {
		if pvs.values[i].Name == name {
			pvs.values[i].Value = value
			return
		}
	}
	pvs.values = append(pvs.values, PropertyValue{Name: name, Value: value})
}

func (pvs *PropertyValues) Get(name string) (Value, bool) {
	for _, v := range pvs.values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

func (pvs *PropertyValues) Remove(name string) {
	for i := range pvs.values {
		if pvs.values[i].Name == name {
			pvs.values = append(pvs.values[:i], pvs.values[i+1:]...)
			return
		}
	}
}

func (pvs *PropertyValues) Len() int {
	return len(pvs.values)
}

func (pvs *PropertyValues) List() []PropertyValue {
	return append([]PropertyValue(nil), pvs.values...)
}

func (pvs PropertyValues) clone() PropertyValues {
	ret := PropertyValues{}
	for _, v := range pvs.values {
		ret.values = append(ret.values, PropertyValue{Name: v.Name, Value: copyValue(v.Value)})
	}
	return ret
}

type ArgValue struct {
	Value Value
	// 可选，参数类型名称
	Type string
	// 可选，参数名称
	Name string
}

// ConstructorArgs 构造参数，包含按位置指定的参数和未指定位置的参数
type ConstructorArgs struct {
	indexed map[int]ArgValue
	generic []ArgValue
}

func (args *ConstructorArgs) AddIndexed(index int, v ArgValue) {
	if args.indexed == nil {
		args.indexed = map[int]ArgValue{}
	}
	args.indexed[index] = v
}

func (args *ConstructorArgs) AddGeneric(v ArgValue) {
	args.generic = append(args.generic, v)
}

func (args *ConstructorArgs) Indexed(index int) (ArgValue, bool) {
	v, ok := args.indexed[index]
	return v, ok
}

func (args *ConstructorArgs) Generic() []ArgValue {
	return append([]ArgValue(nil), args.generic...)
}

func (args *ConstructorArgs) Count() int {
	return len(args.indexed) + len(args.generic)
}

func (args *ConstructorArgs) IsEmpty() bool {
	return args.Count() == 0
}

// Resolve 按位置展开参数：先放置指定位置的参数，剩余位置依次填充未指定位置的参数
func (args *ConstructorArgs) Resolve() ([]ArgValue, error) {
	n := args.Count()
	ret := make([]ArgValue, n)
	set := make([]bool, n)
	for i, v := range args.indexed {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("constructor argument index %d out of range, %d arguments declared", i, n)
		}
		ret[i] = v
		set[i] = true
	}
	g := 0
	for i := range ret {
		if !set[i] {
			ret[i] = args.generic[g]
			g++
		}
	}
	return ret, nil
}

// merge 指定位置的参数按位置覆盖，未指定位置的参数追加
func (args *ConstructorArgs) merge(other ConstructorArgs) {
	for i, v := range other.indexed {
		args.AddIndexed(i, ArgValue{Value: copyValue(v.Value), Type: v.Type, Name: v.Name})
	}
	for _, v := range other.generic {
		args.AddGeneric(ArgValue{Value: copyValue(v.Value), Type: v.Type, Name: v.Name})
	}
}

func (args ConstructorArgs) clone() ConstructorArgs {
	ret := ConstructorArgs{}
	ret.merge(args)
	return ret
}
