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

// Package reader 从XML、脚本DSL、源码扫描以及反射中读取bean定义并注册。
package reader

import (
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/xfali/neve-context/bean"
	"github.com/xfali/neve-context/env"
	"github.com/xfali/neve-context/errors"
	"github.com/xfali/neve-context/injector"
	"github.com/xfali/neve-context/metadata"
	"github.com/xfali/neve-context/resource"
	"github.com/xfali/xlog"
)

type Format string

const (
	FormatXml    Format = "xml"
	FormatScript Format = "script"
	FormatScan   Format = "scan"

	XmlSuffix    = ".xml"
	ScriptSuffix = ".beans"
	SourceSuffix = ".go"
)

// Reader 读取资源中的bean定义注册到注册表，返回注册的定义数量
type Reader interface {
	// 读取单个资源
	LoadResource(res resource.Resource) (int, error)

	// 读取路径，路径可以包含 * ** ? 匹配符
	LoadLocation(location string) (int, error)

	// 按顺序读取多个路径，后读取的同名定义覆盖先读取的
	LoadLocations(locations ...string) (int, error)
}

type parser interface {
	parse(ctx *parseContext, data []byte) error
}

type Opt func(r *defaultReader)

type defaultReader struct {
	logger      xlog.Logger
	registrar   bean.Registrar
	loader      resource.PatternResolver
	env         env.Environment
	format      Format
	annotations *metadata.AnnotationRegistry
	basePackage string
	types       *injector.TypeRegistry

	lock sync.Mutex
}

func newReader(registrar bean.Registrar, format Format, opts ...Opt) *defaultReader {
	ret := &defaultReader{
		logger:    xlog.GetLogger(),
		registrar: registrar,
		format:    format,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.loader == nil {
		ret.loader = resource.NewLoader()
	}
	if ret.annotations == nil {
		ret.annotations = metadata.NewAnnotationRegistry()
	}
	return ret
}

// NewXmlReader 创建XML定义读取器
func NewXmlReader(registrar bean.Registrar, opts ...Opt) *defaultReader {
	return newReader(registrar, FormatXml, opts...)
}

// NewScriptReader 创建脚本定义读取器，.xml后缀的资源仍按XML读取
func NewScriptReader(registrar bean.Registrar, opts ...Opt) *defaultReader {
	return newReader(registrar, FormatScript, opts...)
}

// NewScanReader 创建源码扫描读取器，只读取.go源文件，不加载任何代码
func NewScanReader(registrar bean.Registrar, opts ...Opt) *defaultReader {
	return newReader(registrar, FormatScan, opts...)
}

// NewReader 按format创建读取器
func NewReader(format Format, registrar bean.Registrar, opts ...Opt) (*defaultReader, error) {
	switch format {
	case FormatXml, FormatScript, FormatScan:
		return newReader(registrar, format, opts...), nil
	case "":
		return newReader(registrar, FormatXml, opts...), nil
	}
	return nil, errors.Lifecycle("unknown definition format '%s'", format)
}

func OptSetLogger(logger xlog.Logger) Opt {
	return func(r *defaultReader) {
		r.logger = logger
	}
}

func OptSetLoader(loader resource.PatternResolver) Opt {
	return func(r *defaultReader) {
		r.loader = loader
	}
}

// OptSetEnvironment 设置用于占位符解析和profile判断的环境，未设置时不做解析
func OptSetEnvironment(e env.Environment) Opt {
	return func(r *defaultReader) {
		r.env = e
	}
}

func OptSetAnnotationRegistry(registry *metadata.AnnotationRegistry) Opt {
	return func(r *defaultReader) {
		r.annotations = registry
	}
}

// OptSetBasePackage 扫描时资源路径对应的包路径前缀，例如 github.com/acme/app
func OptSetBasePackage(pkg string) Opt {
	return func(r *defaultReader) {
		r.basePackage = pkg
	}
}

// OptSetTypeRegistry 反射注册时同时将类型注册到types，用于实例化
func OptSetTypeRegistry(types *injector.TypeRegistry) Opt {
	return func(r *defaultReader) {
		r.types = types
	}
}

func (r *defaultReader) Format() Format {
	return r.format
}

func (r *defaultReader) LoadResource(res resource.Resource) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.loadResource(res, nil, r.registrar)
}

func (r *defaultReader) LoadLocation(location string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.loadLocation(location)
}

func (r *defaultReader) LoadLocations(locations ...string) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	count := 0
	for _, l := range locations {
		n, err := r.loadLocation(l)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func (r *defaultReader) loadLocation(location string) (int, error) {
	location, err := r.resolveRequired(location, "")
	if err != nil {
		return 0, err
	}
	resources, err := r.loader.GetResources(location)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, res := range resources {
		n, err := r.loadResource(res, nil, r.registrar)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

// loadResource 解析单个资源到暂存区，成功后提交到target
func (r *defaultReader) loadResource(res resource.Resource, stack []string, target bean.Registrar) (int, error) {
	location := res.Location()
	for _, l := range stack {
		if l == location {
			return 0, errors.DefinitionParse(location,
				fmt.Errorf("detected cyclic import: %s", strings.Join(append(stack, location), " -> ")))
		}
	}
	data, err := readResource(res)
	if err != nil {
		return 0, err
	}

	staging := bean.NewStaging(target, location)
	ctx := &parseContext{
		reader:    r,
		resource:  res,
		location:  location,
		registrar: staging,
		stack:     append(append([]string(nil), stack...), location),
	}
	if err := r.parserFor(location).parse(ctx, data); err != nil {
		return 0, wrapParseError(location, err)
	}
	n, err := staging.Commit()
	if err != nil {
		return n, err
	}
	if len(stack) == 0 {
		r.logger.Infof("Loaded %d bean definitions from %s\n", n, location)
	}
	return n, nil
}

func readResource(res resource.Resource) ([]byte, error) {
	rc, err := res.Open()
	if err != nil {
		return nil, errors.ResourceResolution(res.Location(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.ResourceResolution(res.Location(), err)
	}
	return data, nil
}

func wrapParseError(location string, err error) error {
	if _, ok := err.(*errors.Error); ok {
		return err
	}
	return errors.DefinitionParse(location, err)
}

// parserFor .xml后缀总是按XML解析，.go后缀按源码扫描，其他按读取器的格式
func (r *defaultReader) parserFor(location string) parser {
	ext := strings.ToLower(path.Ext(location))
	switch {
	case ext == XmlSuffix:
		return xmlParser{}
	case ext == SourceSuffix:
		return scanParser{}
	case r.format == FormatXml:
		return xmlParser{}
	case r.format == FormatScan:
		return scanParser{}
	}
	return scriptParser{}
}

func (r *defaultReader) resolveRequired(text, location string) (string, error) {
	if r.env == nil {
		return text, nil
	}
	v, err := r.env.ResolveRequiredPlaceholders(text)
	if err != nil {
		return "", errors.UnresolvableReference(fmt.Sprintf("placeholder in \"%s\"", text), location, err)
	}
	return v, nil
}

func (r *defaultReader) acceptsProfiles(spec string) bool {
	profiles := env.SplitProfiles(spec)
	if len(profiles) == 0 || r.env == nil {
		return true
	}
	return r.env.AcceptsProfiles(profiles...)
}

type parseContext struct {
	reader    *defaultReader
	resource  resource.Resource
	location  string
	registrar *bean.Staging
	stack     []string
}

func (ctx *parseContext) resolve(text string) (string, error) {
	return ctx.reader.resolveRequired(text, ctx.location)
}

// acceptsProfiles spec为逗号或空白分割的profile列表，为空时总是接受
func (ctx *parseContext) acceptsProfiles(spec string) (bool, error) {
	spec, err := ctx.resolve(spec)
	if err != nil {
		return false, err
	}
	ok := ctx.reader.acceptsProfiles(spec)
	if !ok {
		ctx.reader.logger.Infof("Skipped bean definitions of profile [%s] in %s: not active\n", spec, ctx.location)
	}
	return ok, nil
}

// importResource 相对当前资源解析导入路径，导入的定义先于后续定义注册
func (ctx *parseContext) importResource(location string) error {
	location, err := ctx.resolve(location)
	if err != nil {
		return err
	}
	if location == "" {
		return errors.DefinitionParse(ctx.location, fmt.Errorf("import resource location must not be empty"))
	}
	target := location
	if !resource.IsPrefixed(location) {
		target = ctx.resource.Relative(location).Location()
	}
	resources, err := ctx.reader.loader.GetResources(target)
	if err != nil {
		return errors.UnresolvableReference(fmt.Sprintf("import '%s'", location), ctx.location, err)
	}
	for _, res := range resources {
		if _, err := ctx.reader.loadResource(res, ctx.stack, ctx.registrar); err != nil {
			if errors.IsCode(err, errors.CodeResourceResolution) {
				return errors.UnresolvableReference(fmt.Sprintf("import '%s'", location), ctx.location, err)
			}
			return err
		}
	}
	return nil
}

func (ctx *parseContext) register(name string, aliases []string, def bean.Definition) error {
	g := def.Generic()
	g.ResourceDescription = ctx.location
	// 子定义在合并后才完整
	if g.Parent == "" {
		if err := g.Validate(); err != nil {
			e := errors.DefinitionParse(ctx.location, err)
			e.BeanName = name
			return e
		}
	}
	if err := ctx.registrar.RegisterDefinition(name, def); err != nil {
		return err
	}
	for _, a := range aliases {
		if err := ctx.registrar.RegisterAlias(a, name); err != nil {
			return err
		}
	}
	return nil
}

// generateName 为匿名bean生成名称：类名#序号，同时尽可能将类名注册为别名
func (ctx *parseContext) generateName(def *bean.GenericDefinition, inner bool) (string, []string, error) {
	base := def.ClassName
	if base == "" {
		switch {
		case def.Parent != "":
			base = def.Parent + "$child"
		case def.FactoryBean != "":
			base = def.FactoryBean + "$created"
		default:
			return "", nil, errors.DefinitionParse(ctx.location,
				fmt.Errorf("unnamed bean definition specifies neither class nor parent nor factory bean"))
		}
	}
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s#%d", base, i)
		if ctx.registrar.ContainsDefinition(name) {
			continue
		}
		if !inner && i == 0 && def.ClassName != "" &&
			!ctx.registrar.ContainsDefinition(base) && !ctx.registrar.IsAlias(base) {
			return name, []string{base}, nil
		}
		return name, nil, nil
	}
}
