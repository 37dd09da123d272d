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
	"path"
	"strconv"
	"strings"

	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/metadata"
	"github.com/xfali/neve-context/reflection"
)

// Profile 类型上的profile条件注解：@Profile(dev)
const Profile = "Profile"

const testSuffix = "_test.go"

// 不用于命名的注解
var nonNamingAnnotations = map[string]bool{
	metadata.Scope:       true,
	metadata.Lazy:        true,
	metadata.Primary:     true,
	metadata.DependsOn:   true,
	metadata.Description: true,
	Profile:              true,
}

type scanParser struct{}

// parse 只解析源码，不加载、不执行，测试文件被忽略
func (p scanParser) parse(ctx *parseContext, data []byte) error {
	if strings.HasSuffix(ctx.resource.Filename(), testSuffix) {
		return nil
	}
	r := ctx.reader
	pkgPath := ""
	if r.basePackage != "" {
		pkgPath = path.Join(r.basePackage, path.Dir(ctx.resource.Path()))
	}
	files, err := packageFiles(ctx, data)
	if err != nil {
		return err
	}
	types, err := metadata.NewSourceReader(r.annotations).ReadPackage(pkgPath, files...)
	if err != nil {
		return errors.DefinitionParse(ctx.location, err)
	}
	for _, m := range types[ctx.location] {
		// 只注册Component（包括以其为元注解的注解）标记的类型
		if !m.HasAnnotation(metadata.Component) {
			continue
		}
		if err := registerAnnotated(ctx, "", m); err != nil {
			return err
		}
	}
	return nil
}

// packageFiles 当前文件在前，之后为同目录下的其他非测试源文件。
// 方法和接口断言可以声明在包内任意文件中
func packageFiles(ctx *parseContext, data []byte) ([]metadata.SourceFile, error) {
	files := []metadata.SourceFile{{Name: ctx.location, Src: data}}
	pattern := ctx.resource.Relative("*" + SourceSuffix).Location()
	siblings, err := ctx.reader.loader.GetResources(pattern)
	if err != nil {
		return nil, err
	}
	for _, res := range siblings {
		if res.Location() == ctx.location || strings.HasSuffix(res.Filename(), testSuffix) {
			continue
		}
		src, err := readResource(res)
		if err != nil {
			return nil, err
		}
		files = append(files, metadata.SourceFile{Name: res.Location(), Src: src})
	}
	return files, nil
}

func registerAnnotated(ctx *parseContext, name string, m metadata.ClassMetadata) error {
	if attrs, ok := m.AnnotationAttributes(Profile); ok {
		accepted, err := ctx.acceptsProfiles(attrs.Value())
		if err != nil || !accepted {
			return err
		}
	}
	def, err := definitionFromMetadata(m)
	if err != nil {
		return errors.DefinitionParse(ctx.location, err)
	}
	if name == "" {
		name = ComponentName(m)
	}
	if err := ctx.register(name, nil, def); err != nil {
		return err
	}
	for _, method := range m.AnnotatedMethods(metadata.Bean) {
		fd, beanName, aliases, err := factoryMethodDefinition(name, method)
		if err != nil {
			return errors.DefinitionParse(ctx.location, err)
		}
		if err := ctx.register(beanName, aliases, fd); err != nil {
			return err
		}
	}
	return nil
}

// ComponentName 组件名称：第一个带值的命名注解，否则为首字母小写的类型名
func ComponentName(m metadata.ClassMetadata) string {
	for _, a := range m.AnnotationTypes() {
		if nonNamingAnnotations[a] {
			continue
		}
		if attrs, ok := m.AnnotationAttributes(a); ok && attrs.Value() != "" {
			return attrs.Value()
		}
	}
	return reflection.Decapitalize(reflection.SimpleName(m.ClassName()))
}

func definitionFromMetadata(m metadata.ClassMetadata) (*bean.AnnotatedDefinition, error) {
	def := bean.NewAnnotatedDefinition(m)
	if attrs, ok := m.AnnotationAttributes(metadata.Scope); ok {
		def.Scope = attrs.Value()
	}
	if attrs, ok := m.AnnotationAttributes(metadata.Lazy); ok {
		def.Lazy = bean.LazyTrue
		if v := attrs.Value(); v != "" {
			lazy, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid @Lazy value %q", m.ClassName(), v)
			}
			if !lazy {
				def.Lazy = bean.LazyFalse
			}
		}
	}
	if attrs, ok := m.AnnotationAttributes(metadata.Primary); ok {
		def.Primary = attrs.Value() != "false"
	}
	if attrs, ok := m.AnnotationAttributes(metadata.DependsOn); ok {
		def.DependsOn = splitNames(attrs.Value())
	}
	if attrs, ok := m.AnnotationAttributes(metadata.Description); ok {
		def.Description = attrs.Value()
	}
	return def, nil
}

// factoryMethodDefinition @Bean方法声明的bean：由组件实例的方法创建。
// 支持的属性：value/name（多个名称以逗号分割，其余作为别名）、scope、lazy、primary、initMethod、destroyMethod
func factoryMethodDefinition(factoryBean string, method metadata.MethodMetadata) (*bean.GenericDefinition, string, []string, error) {
	attrs, _ := method.AnnotationAttributes(metadata.Bean)
	names := splitNames(attrs.Value())
	if len(names) == 0 {
		names = splitNames(attrs.Get("name"))
	}
	if len(names) == 0 {
		names = []string{reflection.Decapitalize(method.MethodName())}
	}
	def := &bean.GenericDefinition{
		FactoryBean:   factoryBean,
		FactoryMethod: method.MethodName(),
		Scope:         attrs.Get("scope"),
		InitMethod:    attrs.Get("initMethod"),
		DestroyMethod: attrs.Get("destroyMethod"),
		Description:   attrs.Get("description"),
	}
	var err error
	if def.Lazy, err = bean.ParseLazy(attrs.Get("lazy")); err != nil {
		return nil, "", nil, fmt.Errorf("method %s: %v", method.MethodName(), err)
	}
	if v := attrs.Get("primary"); v != "" {
		if def.Primary, err = strconv.ParseBool(v); err != nil {
			return nil, "", nil, fmt.Errorf("method %s: invalid primary value %q", method.MethodName(), v)
		}
	}
	return def, names[0], names[1:], nil
}
