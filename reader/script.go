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
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/errors"
)

// 脚本格式示例：
//
//	import "datasource.xml"
//	alias ds = dataSource
//
//	bean userService("github.com.acme.app.UserService") {
//	    bean.scope = "prototype"
//	    bean.dependsOn = ["ds"]
//	    arg "first"
//	    arg[1] = ref("ds")
//	    timeout = "${app.timeout:5s}"
//	    tags = ["a", "b"]
//	}
//
//	profile dev, !cloud {
//	    bean devTool("github.com.acme.app.DevTool")
//	}
var (
	scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `(?:#|//)[^\n]*`},
		{Name: "String", Pattern: `"(\\"|[^"])*"|'[^']*'`},
		{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-]*`},
		{Name: "Punct", Pattern: `[=.,:;(){}\[\]!]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	scriptGrammar = participle.MustBuild[scriptFile](
		participle.Lexer(scriptLexer),
		participle.Elide("Whitespace", "Comment"),
		participle.Unquote("String"),
		participle.UseLookahead(3),
	)
)

type scriptFile struct {
	Decls []*scriptDecl `@@*`
}

type scriptDecl struct {
	Pos lexer.Position

	Import  *string        `(  "import" @String`
	Alias   *scriptAlias   ` | "alias" @@`
	Profile *scriptProfile ` | "profile" @@`
	Bean    *scriptBean    ` | "bean" @@ ) ";"?`
}

type scriptAlias struct {
	Alias string `@(Ident | String) "="`
	Name  string `@(Ident | String)`
}

type scriptProfile struct {
	Names []*scriptProfileName `@@ ( "," @@ )*`
	Decls []*scriptDecl        `"{" @@* "}"`
}

type scriptProfileName struct {
	Not  bool   `@"!"?`
	Name string `@(Ident | String)`
}

type scriptBean struct {
	Pos lexer.Position

	Name  string        `@(Ident | String)`
	Class *string       `( "(" @String? ")" )?`
	Stmts []*scriptStmt `( "{" @@* "}" )?`
}

type scriptStmt struct {
	Arg  *scriptArg    `(  @@`
	Meta *scriptAssign ` | "bean" "." @@`
	Prop *scriptAssign ` | @@ ) ";"?`
}

type scriptArg struct {
	Index *int         `"arg" ( "[" @Number "]" )?`
	Name  *string      `( "(" @(Ident | String) ")" )? "="?`
	Value *scriptValue `@@`
}

type scriptAssign struct {
	Name  string       `@Ident "="`
	Value *scriptValue `@@`
}

type scriptValue struct {
	Ref    *string     `(  "ref" "(" @(Ident | String) ")"`
	Null   bool        ` | @"null"`
	Bool   *string     ` | @("true" | "false")`
	List   *scriptList ` | @@`
	Map    *scriptMap  ` | @@`
	String *string     ` | @String`
	Number *string     ` | @Number )`
}

type scriptList struct {
	Items []*scriptValue `"[" ( @@ ( "," @@ )* )? "]"`
}

type scriptMap struct {
	Entries []*scriptEntry `"{" ( @@ ( "," @@ )* )? "}"`
}

type scriptEntry struct {
	Key   string       `@(Ident | String) ":"`
	Value *scriptValue `@@`
}

type scriptParser struct{}

func (p scriptParser) parse(ctx *parseContext, data []byte) error {
	file, err := scriptGrammar.ParseBytes(ctx.location, data)
	if err != nil {
		return errors.DefinitionParse(ctx.location, err)
	}
	return p.decls(ctx, file.Decls)
}

func (p scriptParser) decls(ctx *parseContext, decls []*scriptDecl) error {
	for _, d := range decls {
		var err error
		switch {
		case d.Import != nil:
			err = ctx.importResource(*d.Import)
		case d.Alias != nil:
			err = p.alias(ctx, d.Alias)
		case d.Profile != nil:
			err = p.profile(ctx, d.Profile)
		case d.Bean != nil:
			err = p.bean(ctx, d.Bean)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p scriptParser) alias(ctx *parseContext, a *scriptAlias) error {
	name, err := ctx.resolve(a.Name)
	if err != nil {
		return err
	}
	alias, err := ctx.resolve(a.Alias)
	if err != nil {
		return err
	}
	return ctx.registrar.RegisterAlias(alias, name)
}

func (p scriptParser) profile(ctx *parseContext, profile *scriptProfile) error {
	names := make([]string, 0, len(profile.Names))
	for _, n := range profile.Names {
		if n.Not {
			names = append(names, "!"+n.Name)
		} else {
			names = append(names, n.Name)
		}
	}
	accepted, err := ctx.acceptsProfiles(strings.Join(names, ","))
	if err != nil || !accepted {
		return err
	}
	return p.decls(ctx, profile.Decls)
}

func (p scriptParser) bean(ctx *parseContext, b *scriptBean) error {
	name, err := ctx.resolve(b.Name)
	if err != nil {
		return err
	}
	def := &bean.GenericDefinition{}
	if b.Class != nil {
		if def.ClassName, err = ctx.resolve(*b.Class); err != nil {
			return err
		}
	}
	var aliases []string
	fail := func(format string, args ...interface{}) error {
		e := errors.DefinitionParse(ctx.location, fmt.Errorf("%s: %s", b.Pos, fmt.Sprintf(format, args...)))
		e.BeanName = name
		return e
	}
	for _, stmt := range b.Stmts {
		switch {
		case stmt.Arg != nil:
			v, err := p.value(ctx, stmt.Arg.Value)
			if err != nil {
				return err
			}
			arg := bean.ArgValue{Value: v}
			if stmt.Arg.Name != nil {
				arg.Name = *stmt.Arg.Name
			}
			if stmt.Arg.Index == nil {
				def.ConstructorArgs.AddGeneric(arg)
				break
			}
			if *stmt.Arg.Index < 0 {
				return fail("invalid constructor argument index %d", *stmt.Arg.Index)
			}
			if _, exists := def.ConstructorArgs.Indexed(*stmt.Arg.Index); exists {
				return fail("ambiguous constructor argument for index %d", *stmt.Arg.Index)
			}
			def.ConstructorArgs.AddIndexed(*stmt.Arg.Index, arg)
		case stmt.Meta != nil:
			v, err := p.value(ctx, stmt.Meta.Value)
			if err != nil {
				return err
			}
			names, err := p.meta(def, stmt.Meta.Name, v)
			if err != nil {
				return fail("%v", err)
			}
			aliases = append(aliases, names...)
		case stmt.Prop != nil:
			if _, exists := def.Properties.Get(stmt.Prop.Name); exists {
				return fail("multiple assignments to property '%s'", stmt.Prop.Name)
			}
			v, err := p.value(ctx, stmt.Prop.Value)
			if err != nil {
				return err
			}
			def.Properties.Add(stmt.Prop.Name, v)
		}
	}
	if name == "_" {
		if name, aliases, err = ctx.generateName(def, false); err != nil {
			return err
		}
	}
	return ctx.register(name, aliases, def)
}

// meta 设置bean.xxx定义属性，返回bean.alias声明的别名
func (p scriptParser) meta(def *bean.GenericDefinition, key string, v bean.Value) ([]string, error) {
	if key == "alias" || key == "dependsOn" {
		names, err := stringList(v)
		if err != nil {
			return nil, fmt.Errorf("bean.%s: %v", key, err)
		}
		if key == "alias" {
			return names, nil
		}
		def.DependsOn = names
		return nil, nil
	}
	s, ok := v.(bean.StringValue)
	if !ok {
		return nil, fmt.Errorf("bean.%s requires a string value", key)
	}
	str := string(s)
	var err error
	switch key {
	case "scope":
		def.Scope = str
	case "parent":
		def.Parent = str
	case "factoryBean":
		def.FactoryBean = str
	case "factoryMethod":
		def.FactoryMethod = str
	case "initMethod":
		def.InitMethod = str
	case "destroyMethod":
		def.DestroyMethod = str
	case "description":
		def.Description = str
	case "lazy":
		def.Lazy, err = bean.ParseLazy(str)
	case "primary":
		def.Primary, err = strconv.ParseBool(str)
	case "abstract":
		def.Abstract, err = strconv.ParseBool(str)
	case "role":
		def.Role, err = bean.ParseRole(str)
	default:
		return nil, fmt.Errorf("unknown bean attribute '%s'", key)
	}
	if err != nil {
		return nil, fmt.Errorf("bean.%s: %v", key, err)
	}
	return nil, nil
}

func stringList(v bean.Value) ([]string, error) {
	switch s := v.(type) {
	case bean.StringValue:
		return splitNames(string(s)), nil
	case bean.ListValue:
		ret := make([]string, 0, len(s))
		for _, e := range s {
			str, ok := e.(bean.StringValue)
			if !ok {
				return nil, fmt.Errorf("list element must be a string")
			}
			ret = append(ret, string(str))
		}
		return ret, nil
	}
	return nil, fmt.Errorf("requires a string or a list of strings")
}

func (p scriptParser) value(ctx *parseContext, v *scriptValue) (bean.Value, error) {
	switch {
	case v.Ref != nil:
		ref, err := ctx.resolve(*v.Ref)
		return bean.RefValue(ref), err
	case v.Null:
		return nil, nil
	case v.Bool != nil:
		return bean.StringValue(*v.Bool), nil
	case v.Number != nil:
		return bean.StringValue(*v.Number), nil
	case v.String != nil:
		s, err := ctx.resolve(*v.String)
		return bean.StringValue(s), err
	case v.List != nil:
		ret := make(bean.ListValue, 0, len(v.List.Items))
		for _, item := range v.List.Items {
			e, err := p.value(ctx, item)
			if err != nil {
				return nil, err
			}
			ret = append(ret, e)
		}
		return ret, nil
	case v.Map != nil:
		ret := make(bean.MapValue, len(v.Map.Entries))
		for _, entry := range v.Map.Entries {
			key, err := ctx.resolve(entry.Key)
			if err != nil {
				return nil, err
			}
			e, err := p.value(ctx, entry.Value)
			if err != nil {
				return nil, err
			}
			ret[key] = e
		}
		return ret, nil
	}
	return nil, nil
}
