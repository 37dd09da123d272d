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

package reader

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/errors"
)

const (
	elemBeans         = "beans"
	elemBean          = "bean"
	elemAlias         = "alias"
	elemImport        = "import"
	elemDescription   = "description"
	elemConstructor   = "constructor-arg"
	elemProperty      = "property"
	elemValue         = "value"
	elemRef           = "ref"
	elemIdRef         = "idref"
	elemNull          = "null"
	elemList          = "list"
	elemSet           = "set"
	elemArray         = "array"
	elemMap           = "map"
	elemEntry         = "entry"
	elemProps         = "props"
	elemProp          = "prop"
	attrProfile       = "profile"
	attrResource      = "resource"
	attrId            = "id"
	attrName          = "name"
	attrAlias         = "alias"
	attrClass         = "class"
	attrParent        = "parent"
	attrScope         = "scope"
	attrAbstract      = "abstract"
	attrLazyInit      = "lazy-init"
	attrPrimary       = "primary"
	attrDependsOn     = "depends-on"
	attrFactoryBean   = "factory-bean"
	attrFactoryMethod = "factory-method"
	attrInitMethod    = "init-method"
	attrDestroyMethod = "destroy-method"
	attrRole          = "role"
	attrIndex         = "index"
	attrType          = "type"
	attrValue         = "value"
	attrRef           = "ref"
	attrBean          = "bean"
	attrKey           = "key"
	attrKeyRef        = "key-ref"
	attrValueRef      = "value-ref"
)

// xmlNode 通用的元素树，忽略命名空间只按本地名称处理
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n *xmlNode) name() string {
	return n.XMLName.Local
}

func (n *xmlNode) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

type xmlParser struct{}

func (p xmlParser) parse(ctx *parseContext, data []byte) error {
	var root xmlNode
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = true
	if err := decoder.Decode(&root); err != nil {
		return errors.DefinitionParse(ctx.location, err)
	}
	w := &xmlWalker{ctx: ctx}
	return w.element(&root)
}

type xmlWalker struct {
	ctx *parseContext
}

// element 根元素名称不重要，未知元素继续向下查找
func (w *xmlWalker) element(n *xmlNode) error {
	switch n.name() {
	case elemBeans:
		if profile, ok := n.attr(attrProfile); ok {
			accepted, err := w.ctx.acceptsProfiles(profile)
			if err != nil || !accepted {
				return err
			}
		}
		return w.children(n)
	case elemBean:
		_, err := w.bean(n, false)
		return err
	case elemAlias:
		return w.alias(n)
	case elemImport:
		location, ok := n.attr(attrResource)
		if !ok {
			return w.parseError("<import> requires attribute 'resource'")
		}
		return w.ctx.importResource(location)
	}
	return w.children(n)
}

func (w *xmlWalker) children(n *xmlNode) error {
	for i := range n.Nodes {
		if err := w.element(&n.Nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (w *xmlWalker) parseError(format string, args ...interface{}) error {
	return errors.DefinitionParse(w.ctx.location, fmt.Errorf(format, args...))
}

func (w *xmlWalker) attr(n *xmlNode, name string) (string, bool, error) {
	v, ok := n.attr(name)
	if !ok {
		return "", false, nil
	}
	v, err := w.ctx.resolve(v)
	return v, true, err
}

func (w *xmlWalker) text(n *xmlNode) (string, error) {
	return w.ctx.resolve(strings.TrimSpace(n.Text))
}

func (w *xmlWalker) alias(n *xmlNode) error {
	name, _, err := w.attr(n, attrName)
	if err != nil {
		return err
	}
	alias, _, err := w.attr(n, attrAlias)
	if err != nil {
		return err
	}
	if name == "" || alias == "" {
		return w.parseError("<alias> requires attributes 'name' and 'alias'")
	}
	return w.ctx.registrar.RegisterAlias(alias, name)
}

// bean 解析并注册bean定义，返回注册的名称
func (w *xmlWalker) bean(n *xmlNode, inner bool) (string, error) {
	def := &bean.GenericDefinition{}
	attrs := map[string]string{}
	for _, a := range n.Attrs {
		v, err := w.ctx.resolve(a.Value)
		if err != nil {
			return "", err
		}
		attrs[a.Name.Local] = v
	}

	id := attrs[attrId]
	aliases := splitNames(attrs[attrName])
	if id == "" && len(aliases) > 0 {
		id, aliases = aliases[0], aliases[1:]
	}

	def.ClassName = attrs[attrClass]
	def.Parent = attrs[attrParent]
	def.Scope = attrs[attrScope]
	def.FactoryBean = attrs[attrFactoryBean]
	def.FactoryMethod = attrs[attrFactoryMethod]
	def.InitMethod = attrs[attrInitMethod]
	def.DestroyMethod = attrs[attrDestroyMethod]
	def.DependsOn = splitNames(attrs[attrDependsOn])

	var err error
	if v, ok := attrs[attrAbstract]; ok {
		if def.Abstract, err = strconv.ParseBool(v); err != nil {
			return "", w.beanError(id, "invalid abstract value %q", v)
		}
	}
	if v, ok := attrs[attrPrimary]; ok {
		if def.Primary, err = strconv.ParseBool(v); err != nil {
			return "", w.beanError(id, "invalid primary value %q", v)
		}
	}
	if def.Lazy, err = bean.ParseLazy(attrs[attrLazyInit]); err != nil {
		return "", w.beanError(id, "%v", err)
	}
	if v, ok := attrs[attrRole]; ok {
		if def.Role, err = bean.ParseRole(v); err != nil {
			return "", w.beanError(id, "%v", err)
		}
	}

	for i := range n.Nodes {
		child := &n.Nodes[i]
		switch child.name() {
		case elemDescription:
			if def.Description, err = w.text(child); err != nil {
				return "", err
			}
		case elemConstructor:
			if err := w.constructorArg(id, child, def); err != nil {
				return "", err
			}
		case elemProperty:
			if err := w.property(id, child, def); err != nil {
				return "", err
			}
		}
	}

	// 内部bean只供外部bean引用：基础设施角色，未声明lazy-init时随引用创建
	if inner {
		if _, ok := attrs[attrRole]; !ok {
			def.Role = bean.RoleInfrastructure
		}
		if def.Lazy == bean.LazyDefault {
			def.Lazy = bean.LazyTrue
		}
	}
	if id == "" {
		id, aliases, err = w.ctx.generateName(def, inner)
		if err != nil {
			return "", err
		}
	}
	return id, w.ctx.register(id, aliases, def)
}

func (w *xmlWalker) beanError(name string, format string, args ...interface{}) error {
	e := errors.DefinitionParse(w.ctx.location, fmt.Errorf(format, args...))
	e.BeanName = name
	return e
}

func (w *xmlWalker) constructorArg(name string, n *xmlNode, def *bean.GenericDefinition) error {
	v, err := w.propertyValue(name, n, "<constructor-arg>")
	if err != nil {
		return err
	}
	arg := bean.ArgValue{Value: v}
	if arg.Type, _, err = w.attr(n, attrType); err != nil {
		return err
	}
	if arg.Name, _, err = w.attr(n, attrName); err != nil {
		return err
	}
	index, ok, err := w.attr(n, attrIndex)
	if err != nil {
		return err
	}
	if !ok {
		def.ConstructorArgs.AddGeneric(arg)
		return nil
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 {
		return w.beanError(name, "invalid constructor-arg index %q", index)
	}
	if _, exists := def.ConstructorArgs.Indexed(i); exists {
		return w.beanError(name, "ambiguous constructor-arg entries for index %d", i)
	}
	def.ConstructorArgs.AddIndexed(i, arg)
	return nil
}

func (w *xmlWalker) property(name string, n *xmlNode, def *bean.GenericDefinition) error {
	prop, _, err := w.attr(n, attrName)
	if err != nil {
		return err
	}
	if prop == "" {
		return w.beanError(name, "<property> requires attribute 'name'")
	}
	if _, exists := def.Properties.Get(prop); exists {
		return w.beanError(name, "multiple <property> definitions for property '%s'", prop)
	}
	v, err := w.propertyValue(name, n, fmt.Sprintf("<property name=\"%s\">", prop))
	if err != nil {
		return err
	}
	def.Properties.Add(prop, v)
	return nil
}

// propertyValue value/ref属性与子元素只能出现一个
func (w *xmlWalker) propertyValue(name string, n *xmlNode, desc string) (bean.Value, error) {
	value, hasValue, err := w.attr(n, attrValue)
	if err != nil {
		return nil, err
	}
	ref, hasRef, err := w.attr(n, attrRef)
	if err != nil {
		return nil, err
	}
	var sub *xmlNode
	for i := range n.Nodes {
		if n.Nodes[i].name() == elemDescription {
			continue
		}
		if sub != nil {
			return nil, w.beanError(name, "%s must not contain more than one sub-element", desc)
		}
		sub = &n.Nodes[i]
	}
	count := 0
	for _, b := range []bool{hasValue, hasRef, sub != nil} {
		if b {
			count++
		}
	}
	if count != 1 {
		return nil, w.beanError(name, "%s must specify exactly one of 'value' attribute, 'ref' attribute or sub-element", desc)
	}
	switch {
	case hasValue:
		return bean.StringValue(value), nil
	case hasRef:
		if ref == "" {
			return nil, w.beanError(name, "%s contains empty 'ref' attribute", desc)
		}
		return bean.RefValue(ref), nil
	}
	return w.value(name, sub)
}

func (w *xmlWalker) value(name string, n *xmlNode) (bean.Value, error) {
	switch n.name() {
	case elemValue:
		v, err := w.text(n)
		return bean.StringValue(v), err
	case elemNull:
		return nil, nil
	case elemRef, elemIdRef:
		ref, _, err := w.attr(n, attrBean)
		if err != nil {
			return nil, err
		}
		if ref == "" {
			return nil, w.beanError(name, "<%s> requires attribute 'bean'", n.name())
		}
		if n.name() == elemIdRef {
			return bean.StringValue(ref), nil
		}
		return bean.RefValue(ref), nil
	case elemBean:
		inner, err := w.bean(n, true)
		if err != nil {
			return nil, err
		}
		return bean.RefValue(inner), nil
	case elemList, elemSet, elemArray:
		ret := bean.ListValue{}
		for i := range n.Nodes {
			if n.Nodes[i].name() == elemDescription {
				continue
			}
			v, err := w.value(name, &n.Nodes[i])
			if err != nil {
				return nil, err
			}
			ret = append(ret, v)
		}
		return ret, nil
	case elemMap:
		return w.mapValue(name, n)
	case elemProps:
		ret := bean.MapValue{}
		for i := range n.Nodes {
			prop := &n.Nodes[i]
			if prop.name() != elemProp {
				continue
			}
			key, _, err := w.attr(prop, attrKey)
			if err != nil {
				return nil, err
			}
			v, err := w.text(prop)
			if err != nil {
				return nil, err
			}
			ret[key] = bean.StringValue(v)
		}
		return ret, nil
	}
	return nil, w.beanError(name, "unknown value element <%s>", n.name())
}

func (w *xmlWalker) mapValue(name string, n *xmlNode) (bean.Value, error) {
	ret := bean.MapValue{}
	for i := range n.Nodes {
		entry := &n.Nodes[i]
		if entry.name() != elemEntry {
			continue
		}
		key, ok, err := w.attr(entry, attrKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			if key, ok, err = w.attr(entry, attrKeyRef); err != nil {
				return nil, err
			}
		}
		if !ok {
			return nil, w.beanError(name, "<entry> requires attribute 'key'")
		}
		var v bean.Value
		if s, ok, err := w.attr(entry, attrValue); err != nil {
			return nil, err
		} else if ok {
			v = bean.StringValue(s)
		} else if s, ok, err := w.attr(entry, attrValueRef); err != nil {
			return nil, err
		} else if ok {
			v = bean.RefValue(s)
		} else {
			for j := range entry.Nodes {
				if entry.Nodes[j].name() == elemDescription {
					continue
				}
				if v, err = w.value(name, &entry.Nodes[j]); err != nil {
					return nil, err
				}
				break
			}
		}
		ret[key] = v
	}
	return ret, nil
}

// splitNames 按逗号、分号或空白分割名称列表
func splitNames(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
