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
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
	"github.com/xfali/neve-context/reflection"
)

const (
	Component     = "Component"
	Service       = "Service"
	Repository    = "Repository"
	Controller    = "Controller"
	Configuration = "Configuration"
	Scope         = "Scope"
	Lazy          = "Lazy"
	Primary       = "Primary"
	DependsOn     = "DependsOn"
	Description   = "Description"
	Bean          = "Bean"
)

var (
	annotationLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "String", Pattern: `"(\\"|[^"])*"|'[^']*'`},
		{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-]*`},
		{Name: "Punct", Pattern: `[@=,().]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	annotationParser = participle.MustBuild[annotationList](
		participle.Lexer(annotationLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
)

type annotationList struct {
	Items []*annotationExpr `@@*`
}

type annotationExpr struct {
	Name []string         `"@" @Ident ( "." @Ident )*`
	Args []*annotationArg `( "(" ( @@ ( "," @@ )* )? ")" )?`
}

type annotationArg struct {
	Key   string `( @Ident "=" )?`
	Value string `@( String | Number | Ident )`
}

// ParseAnnotations 解析注解表达式，例如 @Service(userService) @Scope(value=prototype)
func ParseAnnotations(expr string) ([]Annotation, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	list, err := annotationParser.ParseString("", expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid annotation expression %q", expr)
	}
	ret := make([]Annotation, 0, len(list.Items))
	for _, item := range list.Items {
		a := Annotation{
			Name:       strings.Join(item.Name, "."),
			Attributes: Attributes{},
		}
		for _, arg := range item.Args {
			key := arg.Key
			if key == "" {
				key = ValueKey
			}
			a.Attributes[key] = arg.Value
		}
		ret = append(ret, a)
	}
	return ret, nil
}

// AnnotationRegistry 记录注解之间的元注解关系以及反射方式可识别的接口。
// 进程内创建一次并显式传递给读取器。
type AnnotationRegistry struct {
	lock       sync.RWMutex
	metas      map[string][]Annotation
	interfaces []reflect.Type
}

type AnnotationOpt func(r *AnnotationRegistry)

// NewAnnotationRegistry 创建注册表，Service/Repository/Controller/Configuration默认以Component为元注解
func NewAnnotationRegistry(opts ...AnnotationOpt) *AnnotationRegistry {
	ret := &AnnotationRegistry{
		metas: map[string][]Annotation{},
	}
	for _, name := range []string{Service, Repository, Controller, Configuration} {
		ret.metas[name] = []Annotation{{Name: Component, Attributes: Attributes{}}}
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Declare 声明注解name上的元注解，metaExpr为注解表达式
func (r *AnnotationRegistry) Declare(name string, metaExpr string) error {
	metas, err := ParseAnnotations(metaExpr)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.metas[name] = append(r.metas[name], metas...)
	return nil
}

// RegisterInterface 注册反射方式检测的接口，参数为接口指针如 (*io.Reader)(nil)
func (r *AnnotationRegistry) RegisterInterface(ifaces ...interface{}) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, i := range ifaces {
		t := reflect.TypeOf(i)
		if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Interface {
			return errors.Errorf("%v is not a pointer to interface", i)
		}
		r.interfaces = append(r.interfaces, t.Elem())
	}
	return nil
}

func (r *AnnotationRegistry) implemented(t reflect.Type) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var ret []string
	pt := t
	if pt.Kind() != reflect.Ptr {
		pt = reflect.PtrTo(t)
	}
	for _, i := range r.interfaces {
		if pt.Implements(i) {
			ret = append(ret, reflection.GetClassName(i))
		}
	}
	return ret
}

// resolve 计算注解的元注解闭包，直接声明的属性优先
func (r *AnnotationRegistry) resolve(direct []Annotation) map[string]Annotation {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ret := make(map[string]Annotation, len(direct))
	queue := make([]Annotation, 0, len(direct))
	for _, a := range direct {
		if _, ok := ret[a.Name]; ok {
			continue
		}
		ret[a.Name] = Annotation{Name: a.Name, Attributes: a.Attributes.clone()}
		queue = append(queue, a)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, m := range r.metas[cur.Name] {
			if _, ok := ret[m.Name]; ok {
				continue
			}
			ret[m.Name] = Annotation{Name: m.Name, Attributes: m.Attributes.clone()}
			queue = append(queue, m)
		}
	}
	return ret
}
